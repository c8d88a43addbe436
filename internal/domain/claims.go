package domain

// Claims проверенная полезная нагрузка токена
type Claims map[string]any

// Subject возвращает идентификатор пользователя (sub)
func (c Claims) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

// Issuer возвращает издателя токена (iss)
func (c Claims) Issuer() string {
	s, _ := c["iss"].(string)
	return s
}

// Email возвращает email, если провайдер положил его в токен
func (c Claims) Email() string {
	s, _ := c["email"].(string)
	return s
}

// Audience возвращает список аудиторий; aud может быть строкой или массивом
func (c Claims) Audience() []string {
	switch v := c["aud"].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
