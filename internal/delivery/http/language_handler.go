package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arbiter-oj/arbiter/internal/domain"
	"github.com/arbiter-oj/arbiter/internal/executor"
)

// LanguageHandler handles language listing requests.
type LanguageHandler struct{}

// NewLanguageHandler creates a new LanguageHandler.
func NewLanguageHandler() *LanguageHandler {
	return &LanguageHandler{}
}

type languageInfo struct {
	Name      domain.Language `json:"name"`
	RuntimeID int             `json:"runtime_id"`
}

// List handles GET /api/v1/languages
func (h *LanguageHandler) List(c *gin.Context) {
	supported := []domain.Language{
		domain.LangCpp,
		domain.LangPython,
		domain.LangJavaScript,
		domain.LangJava,
		domain.LangGo,
	}

	languages := make([]languageInfo, 0, len(supported))
	for _, lang := range supported {
		id, err := executor.RuntimeID(lang)
		if err != nil {
			continue
		}
		languages = append(languages, languageInfo{Name: lang, RuntimeID: id})
	}

	c.JSON(http.StatusOK, gin.H{
		"languages": languages,
	})
}
