// Package config loads typed configuration structs from environment
// variables.
//
// Values come from the process environment, with an optional .env file in
// the working directory loaded once through github.com/joho/godotenv. Fields
// are mapped with github.com/caarlos0/env/v11 struct tags. Every successfully
// loaded type is cached for the lifetime of the process.
//
// Types that implement Validator are validated right after parsing, so a
// missing price id or an empty webhook secret stops the binary at startup
// instead of failing on the first request:
//
//	type Config struct {
//		CronSecret string `env:"CRON_SECRET,required"`
//	}
//
//	func (c Config) Validate() error { ... }
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
