package handlers

import (
	"net/http"

	"github.com/Dhoini/Plugin-billing-service/internal/config"
	"github.com/Dhoini/Plugin-billing-service/pkg/res"

	"github.com/gin-gonic/gin"
)

// PluginManifest описание плагина для /.well-known/ai-plugin.json
type PluginManifest struct {
	SchemaVersion       string       `json:"schema_version"`
	NameForHuman        string       `json:"name_for_human"`
	NameForModel        string       `json:"name_for_model"`
	DescriptionForHuman string       `json:"description_for_human"`
	DescriptionForModel string       `json:"description_for_model"`
	Auth                ManifestAuth `json:"auth"`
	API                 ManifestAPI  `json:"api"`
	LogoURL             string       `json:"logo_url"`
	ContactEmail        string       `json:"contact_email"`
	LegalInfoURL        string       `json:"legal_info_url"`
}

// ManifestAuth блок OAuth манифеста
type ManifestAuth struct {
	Type                     string            `json:"type"`
	ClientURL                string            `json:"client_url"`
	Scope                    string            `json:"scope"`
	Audience                 string            `json:"audience"`
	AuthorizationURL         string            `json:"authorization_url"`
	AuthorizationContentType string            `json:"authorization_content_type"`
	VerificationTokens       map[string]string `json:"verification_tokens"`
}

// ManifestAPI ссылка на OpenAPI описание
type ManifestAPI struct {
	Type                string `json:"type"`
	URL                 string `json:"url"`
	IsUserAuthenticated bool   `json:"is_user_authenticated"`
}

// NewPluginManifest собирает манифест из конфигурации
func NewPluginManifest(cfg *config.Config) PluginManifest {
	return PluginManifest{
		SchemaVersion:       "v1",
		NameForHuman:        cfg.Plugin.NameForHuman,
		NameForModel:        cfg.Plugin.NameForModel,
		DescriptionForHuman: cfg.Plugin.DescriptionForHuman,
		DescriptionForModel: cfg.Plugin.DescriptionForModel,
		Auth: ManifestAuth{
			Type:                     cfg.Plugin.AuthType,
			ClientURL:                "https://" + cfg.Auth0.Domain + "/authorize",
			Scope:                    "openid email offline_access",
			Audience:                 cfg.Auth0.APIIdentifier,
			AuthorizationURL:         "https://" + cfg.Auth0.Domain + "/oauth/token",
			AuthorizationContentType: "application/json",
			VerificationTokens:       map[string]string{"openai": cfg.Plugin.VerificationToken},
		},
		API: ManifestAPI{
			Type:                "openapi",
			URL:                 cfg.BaseURL + "/" + cfg.Plugin.OpenAPIPath,
			IsUserAuthenticated: true,
		},
		LogoURL:      cfg.BaseURL + "/static/images/logo.png",
		ContactEmail: cfg.Plugin.ContactEmail,
		LegalInfoURL: cfg.BaseURL + "/legal",
	}
}

// PluginHandler отдает манифест плагина и статус сервиса
type PluginHandler struct {
	manifest PluginManifest
}

// NewPluginHandler создает обработчик; манифест собирается один раз
func NewPluginHandler(cfg *config.Config) *PluginHandler {
	return &PluginHandler{manifest: NewPluginManifest(cfg)}
}

// Manifest обрабатывает GET /.well-known/ai-plugin.json
func (h *PluginHandler) Manifest(c *gin.Context) {
	res.JsonResponse(c.Writer, h.manifest, http.StatusOK)
}

// HealthCheck обрабатывает GET /healthcheck
func (h *PluginHandler) HealthCheck(c *gin.Context) {
	res.JsonResponse(c.Writer, gin.H{"status": "ok"}, http.StatusOK)
}
