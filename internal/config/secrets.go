package config

import (
	"net/url"
	"slices"
	"strings"
)

const redacted = "***"

// RedactedConfig returns a copy of cfg that is safe to log. Credentials are
// masked, and a database DSN keeps its host and database name but loses
// its password.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	out.Notify.Events = slices.Clone(cfg.Notify.Events)

	out.Database.DSN = redactDSN(cfg.Database.DSN)
	for _, s := range []*string{
		&out.Database.Password,
		&out.Redis.Password,
		&out.S3.AccessKey,
		&out.S3.SecretKey,
		&out.Oracle.APIKey,
		&out.Metrics.APIKey,
		&out.Server.APIKey,
		&out.Notify.TelegramToken,
		&out.Notify.DiscordWebhookURL,
	} {
		if *s != "" {
			*s = redacted
		}
	}
	return out
}

// redactDSN masks the password of a URL-style DSN. Anything it cannot parse
// is masked whole.
func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return redacted
	}
	if _, ok := u.User.Password(); !ok {
		return u.String()
	}
	// url.UserPassword would percent-escape the mask.
	return strings.Replace(u.Redacted(), ":xxxxx@", ":"+redacted+"@", 1)
}
