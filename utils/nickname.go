package utils

import (
	"math/rand"
)

var nicknameAdjectives = []string{
	"萌萌哒", "胖乎乎", "圆滚滚", "软绵绵", "懒洋洋",
	"喜洋洋", "亮晶晶", "香喷喷", "乐陶陶", "气呼呼",
	"傻乎乎", "乐悠悠", "慢吞吞", "闹哄哄", "静悄悄",
	"暖洋洋", "凉飕飕", "乐滋滋", "甜津津", "兴冲冲",
}

var nicknameNouns = []string{
	"打工人", "咸鱼", "显眼包", "小趴菜", "纯爱战士",
	"精神小伙", "气氛组", "倒霉蛋", "锦鲤", "螺丝钉",
	"杠精", "老六", "电灯泡", "吃货", "特种兵",
	"干饭人", "追剧狂", "游戏迷", "背锅侠", "柠檬精",
}

// GenerateNickname returns "<adjective>的<noun>", which always passes ValidateNickname.
func GenerateNickname(rng *rand.Rand) string {
	return RandomItem(nicknameAdjectives, rng) + "的" + RandomItem(nicknameNouns, rng)
}
