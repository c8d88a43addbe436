package credential

import (
	"context"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/internal/metrics"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithm алгоритм подписи токенов провайдера идентификации
const DefaultAlgorithm = "RS256"

// Validator проверяет токены доступа по набору ключей провайдера
type Validator struct {
	keys       *KeySetCache
	algorithms []string
	leeway     time.Duration
	metrics    metrics.CredentialMetrics
	log        *logger.Logger
}

// ValidatorOption настраивает Validator
type ValidatorOption func(*Validator)

// WithAlgorithms задает допустимые алгоритмы подписи
func WithAlgorithms(algs ...string) ValidatorOption {
	return func(v *Validator) {
		if len(algs) > 0 {
			v.algorithms = algs
		}
	}
}

// WithLeeway задает допуск по времени для exp/nbf
func WithLeeway(d time.Duration) ValidatorOption {
	return func(v *Validator) { v.leeway = d }
}

// WithValidationMetrics подключает метрики
func WithValidationMetrics(m metrics.CredentialMetrics) ValidatorOption {
	return func(v *Validator) {
		if m != nil {
			v.metrics = m
		}
	}
}

// NewValidator создает валидатор токенов
func NewValidator(keys *KeySetCache, log *logger.Logger, opts ...ValidatorOption) *Validator {
	v := &Validator{
		keys:       keys,
		algorithms: []string{DefaultAlgorithm},
		metrics:    metrics.NopCredentialMetrics(),
		log:        log,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issuer возвращает ожидаемого издателя для домена провайдера
func Issuer(providerDomain string) string {
	return "https://" + providerDomain + "/"
}

// Validate проверяет токен и возвращает его claims
func (v *Validator) Validate(ctx context.Context, raw, providerDomain, audience string) (domain.Claims, error) {
	claims, err := v.validate(ctx, raw, providerDomain, audience)
	if err != nil {
		v.metrics.IncValidation(KindOf(err).String())
		v.log.Warnw("Credential rejected", "domain", providerDomain, "error", err)
		return nil, err
	}
	v.metrics.IncValidation("success")
	return claims, nil
}

func (v *Validator) validate(ctx context.Context, raw, providerDomain, audience string) (domain.Claims, error) {
	set, err := v.keys.Get(ctx, providerDomain)
	if err != nil {
		return nil, err
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return nil, newError(KindMalformed, "parse header: %w", err)
	}
	kid, _ := unverified.Header["kid"].(string)
	alg, _ := unverified.Header["alg"].(string)

	key, ok := set.LookupKeyID(kid)
	if !ok {
		// Провайдер мог сменить ключи раньше истечения кэша
		refreshed, updated, refreshErr := v.keys.Refresh(ctx, providerDomain)
		if refreshErr == nil && updated {
			key, ok = refreshed.LookupKeyID(kid)
		}
	}
	if !ok {
		return nil, newError(KindKeyNotFound, "no key with kid %q", kid)
	}

	if keyAlg := key.Algorithm().String(); keyAlg != "" && keyAlg != alg {
		return nil, newError(KindInvalid, "key %q is for %s, token declares %s", kid, keyAlg, alg)
	}

	var material any
	if err := key.Raw(&material); err != nil {
		return nil, newError(KindInvalid, "build verification key %q: %w", kid, err)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods(v.algorithms),
		jwt.WithAudience(audience),
		jwt.WithIssuer(Issuer(providerDomain)),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return material, nil
	}); err != nil {
		return nil, newError(KindInvalid, "%w", err)
	}

	return domain.Claims(claims), nil
}
