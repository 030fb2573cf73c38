package model

// DefaultCurrencyName is used when a guild has no stored settings.
const DefaultCurrencyName = "coins"

// DefaultPrefix is the default command prefix.
const DefaultPrefix = "/vending"

// GuildSettings holds per-guild display settings. A missing row means
// the defaults apply; the engine never writes these.
type GuildSettings struct {
	ID           int64  `json:"id"`
	GuildID      string `json:"guild_id"`
	CurrencyName string `json:"currency_name"`
	Prefix       string `json:"prefix"`
	IsActive     bool   `json:"is_active"`
}

// DefaultGuildSettings returns the settings used for guilds without a
// stored row.
func DefaultGuildSettings(guildID string) *GuildSettings {
	return &GuildSettings{
		GuildID:      guildID,
		CurrencyName: DefaultCurrencyName,
		Prefix:       DefaultPrefix,
		IsActive:     true,
	}
}
