package handlers

import (
	"context"

	"videofetch/internal/middleware"
)

// Message keys for user-visible error strings.
const (
	msgInvalidURL = "invalid_url"
	msgOverloaded = "overloaded"
	msgNotFound   = "not_found"
	msgNotReady   = "not_ready"
	msgGone       = "gone"
	msgInternal   = "internal"
)

// The service historically fronted a Russian-language page, so the
// user-facing strings ship in both languages.
var messages = map[string]map[string]string{
	"en": {
		msgInvalidURL: "Unsupported or malformed video URL",
		msgOverloaded: "Too many active downloads, try again later",
		msgNotFound:   "Download not found",
		msgNotReady:   "Download is not completed yet",
		msgGone:       "The file has already been removed",
		msgInternal:   "Internal server error",
	},
	"ru": {
		msgInvalidURL: "Неверный или неподдерживаемый формат URL",
		msgOverloaded: "Слишком много активных загрузок, попробуйте позже",
		msgNotFound:   "Загрузка не найдена",
		msgNotReady:   "Загрузка ещё не завершена",
		msgGone:       "Файл уже удалён",
		msgInternal:   "Внутренняя ошибка сервера",
	},
}

func localize(ctx context.Context, key string) string {
	locale := middleware.LocaleFromContext(ctx)
	if m, ok := messages[locale]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages["en"][key]
}
