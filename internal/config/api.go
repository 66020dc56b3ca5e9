package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type (
	DB struct {
		Path string `envconfig:"DB_PATH" required:"true"`
	}

	CORS struct {
		AllowOrigins []string `envconfig:"ALLOW_ORIGINS" required:"true"`
	}

	JWT struct {
		Issuer       string        `envconfig:"ISSUER" default:"idk-voca-api"`
		Audience     []string      `envconfig:"AUDIENCE" required:"true"`
		Secret       string        `envconfig:"SECRET"`
		SecretSSMKey string        `envconfig:"SECRET_SSM_KEY"`
		ExpiresIn    time.Duration `envconfig:"EXPIRES_IN" default:"24h"`
	}

	HTTP struct {
		ProcessTimeout time.Duration `envconfig:"PROCESS_TIMEOUT" default:"10s"`
		RateLimit      float64       `envconfig:"RATE_LIMIT" default:"25"`
		CORS           CORS
		JWT            JWT
	}

	Server struct {
		ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"10s"`
		Addr              string        `envconfig:"ADDR" default:":8080"`
	}

	Learning struct {
		BatchSize          int           `envconfig:"BATCH_SIZE" default:"10"`
		FlushRetryInterval time.Duration `envconfig:"FLUSH_RETRY_INTERVAL" default:"1m"`
	}

	API struct {
		Dev      bool `envconfig:"DEV" default:"false"`
		DB       DB
		HTTP     HTTP
		Learning Learning
		Server   Server
	}
)

func NewAPI(ctx context.Context) (API, error) {
	var res API
	if err := envconfig.Process("API", &res); err != nil {
		return API{}, fmt.Errorf("parse api environment: %w", err)
	}

	if res.HTTP.JWT.Secret == "" {
		if res.Dev {
			return API{}, errors.New("jwt secret is required in dev mode")
		}
		if res.HTTP.JWT.SecretSSMKey == "" {
			return API{}, errors.New("either jwt secret or its ssm key is required")
		}

		params, err := FetchAWSParams(ctx, res.HTTP.JWT.SecretSSMKey)
		if err != nil {
			return API{}, fmt.Errorf("fetch jwt secret: %w", err)
		}
		res.HTTP.JWT.Secret = params[res.HTTP.JWT.SecretSSMKey]
	}

	if res.Learning.BatchSize <= 0 {
		return API{}, errors.New("learning batch size must be positive")
	}

	return res, nil
}
