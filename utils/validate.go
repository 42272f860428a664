package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wfunc/spyserver/models"
)

const (
	MaxNicknameLength    = 20
	MaxDescriptionLength = 200
	MaxMessageLength     = 200
	MaxWordLength        = 50
)

var (
	nicknamePattern = regexp.MustCompile(`^[\p{L}\p{N}\s]+$`)
	roomCodePattern = regexp.MustCompile(`^\d{6}$`)
)

// ValidateNickname checks emptiness, length and charset; it returns the trimmed nickname.
func ValidateNickname(nickname string) (string, error) {
	trimmed := strings.TrimSpace(nickname)
	if trimmed == "" {
		return "", models.Validation("Nickname cannot be empty")
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return "", models.Validation("Nickname must be 20 characters or less")
	}
	if !nicknamePattern.MatchString(nickname) {
		return "", models.Validation("Nickname contains invalid characters")
	}
	return trimmed, nil
}

func ValidateRoomCode(code string) error {
	if utf8.RuneCountInString(code) != 6 {
		return models.Validation("Room code must be 6 digits")
	}
	if !roomCodePattern.MatchString(code) {
		return models.Validation("Room code must contain only numbers")
	}
	return nil
}

// ValidateDescription trims text and enforces the 200 character limit.
func ValidateDescription(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", models.ErrEmptyDescription
	}
	if utf8.RuneCountInString(trimmed) > MaxDescriptionLength {
		return "", models.ErrDescriptionLength
	}
	return trimmed, nil
}

func ValidateMessage(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", models.ErrEmptyMessage
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return "", models.ErrMessageLength
	}
	return trimmed, nil
}

// NormalizeDraft trims a draft and cuts it to the description limit. The result may be empty.
func NormalizeDraft(text string) string {
	return Truncate(strings.TrimSpace(text), MaxDescriptionLength)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// ValidateWord checks one side of a word pair.
func ValidateWord(word string) (string, error) {
	trimmed := strings.TrimSpace(word)
	if trimmed == "" {
		return "", models.Validation("Words cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxWordLength {
		return "", models.Validation("Words must be 50 characters or less")
	}
	return trimmed, nil
}
