package services

import "github.com/wfunc/spyserver/models"

// DefaultWordPairs 默认词库: 平民词 / 卧底词
var DefaultWordPairs = []models.WordPairInput{
	{WordA: "橙子", WordB: "橘子"},
	{WordA: "面包", WordB: "馒头"},
	{WordA: "眉毛", WordB: "胡须"},
	{WordA: "饺子", WordB: "包子"},
	{WordA: "摩托车", WordB: "电动车"},
	{WordA: "高跟鞋", WordB: "增高鞋"},
	{WordA: "汉堡", WordB: "肉夹馍"},
	{WordA: "洗发水", WordB: "护发素"},
	{WordA: "同学", WordB: "同桌"},
	{WordA: "状元", WordB: "冠军"},
	{WordA: "饼干", WordB: "薯片"},
	{WordA: "口红", WordB: "唇彩"},
	{WordA: "自行车", WordB: "电动车"},
	{WordA: "牛奶", WordB: "豆浆"},
	{WordA: "玫瑰", WordB: "月季"},
	{WordA: "保安", WordB: "保镖"},
	{WordA: "白菜", WordB: "生菜"},
	{WordA: "辣椒", WordB: "芥末"},
	{WordA: "金庸", WordB: "古龙"},
	{WordA: "麻将", WordB: "扑克"},
	{WordA: "北京", WordB: "东京"},
	{WordA: "报纸", WordB: "杂志"},
	{WordA: "双胞胎", WordB: "龙凤胎"},
	{WordA: "手机", WordB: "座机"},
	{WordA: "作家", WordB: "编剧"},
	{WordA: "钢琴", WordB: "吉他"},
	{WordA: "空调", WordB: "风扇"},
}
