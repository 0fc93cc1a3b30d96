// Package i18n provides localized status messages.
package i18n

import (
	"fmt"
	"sync"
)

// Language represents a message language.
type Language string

const (
	ES Language = "es"
	EN Language = "en"
)

var (
	mu      sync.RWMutex
	current = ES // Default language
)

// Translations for all supported languages.
var translations = map[Language]map[string]string{
	ES: {
		"app_name": "Comandos de voz",

		// Status toasts
		"status_started":     "Reconocimiento de voz iniciado",
		"status_command":     "Comando detectado: %s",
		"status_ended":       "Fin de reconocimiento de voz",
		"status_error":       "Error en el reconocimiento de voz: %s",
		"status_unsupported": "El reconocimiento de voz no es compatible con este entorno.",
	},

	EN: {
		"app_name": "Voice commands",

		// Status toasts
		"status_started":     "Voice recognition started",
		"status_command":     "Command detected: %s",
		"status_ended":       "Voice recognition ended",
		"status_error":       "Voice recognition error: %s",
		"status_unsupported": "Voice recognition is not supported in this environment.",
	},
}

// T returns the translation for the given key.
func T(key string) string {
	mu.RLock()
	defer mu.RUnlock()

	if strings, ok := translations[current]; ok {
		if s, ok := strings[key]; ok {
			return s
		}
	}
	// Fallback to key itself
	return key
}

// Tf formats the translation for key with args.
func Tf(key string, args ...any) string {
	return fmt.Sprintf(T(key), args...)
}

// SetLanguage sets the current language. Unknown languages are ignored and
// reported as false.
func SetLanguage(lang Language) bool {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := translations[lang]; !ok {
		return false
	}
	current = lang
	return true
}

// GetLanguage returns the current language.
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// AvailableLanguages returns list of supported languages.
func AvailableLanguages() []Language {
	return []Language{ES, EN}
}
