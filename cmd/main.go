package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"support-copilot/handler"
	"support-copilot/internal/config"
	"support-copilot/internal/copilot"
	"support-copilot/internal/inbox"
	"support-copilot/internal/integrations/openai"
	"support-copilot/internal/integrations/paramstore"
	"support-copilot/internal/repository"
	"support-copilot/internal/responder"
	"support-copilot/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	seedSource := envString("SEED_SOURCE", "embedded")
	responderKind := envString("RESPONDER", "lookup")
	sourceCount := envInt("SOURCE_COUNT", 0)
	latencyMS := envInt("LATENCY_MS", -1)
	temperature, hasTemperature := envFloat("OPENAI_TEMPERATURE")

	// ---- AWS SDK config ----
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	var params *paramstore.Client
	if seedSource == "ssm" || responderKind == "llm" {
		params, err = paramstore.New(awsssm.NewFromConfig(cfg))
		if err != nil {
			fatal("failed to create SSM client", err)
		}
	}

	// ---- Seed ----
	var seed *config.Seed
	switch seedSource {
	case "embedded":
		seed, err = config.Default()
	case "ssm":
		var raw string
		raw, err = params.GetParameter(ctx, strings.TrimRight(mustEnv("PARAM_PREFIX"), "/")+"/seed")
		if err == nil {
			seed, err = config.Parse([]byte(raw))
		}
	default:
		slog.Error("unknown seed source", "seed_source", seedSource)
		os.Exit(1)
	}
	if err != nil {
		fatal("failed to load seed", err)
	}
	if sourceCount > 0 {
		seed.Copilot.SourceCount = sourceCount
	}

	// ---- Responder ----
	var r copilot.Responder
	switch responderKind {
	case "lookup":
		var opts []responder.LookupOption
		if latencyMS >= 0 {
			d := time.Duration(latencyMS) * time.Millisecond
			opts = append(opts, responder.WithLatency(d, d))
		}
		r, err = responder.NewLookup(seed.Copilot, opts...)
	case "knowledge-base":
		var kb *repository.Client
		kb, err = repository.New(awsdynamodb.NewFromConfig(cfg), mustEnv("KB_TABLE"), os.Getenv("KB_NAMESPACE"))
		if err == nil {
			r, err = responder.NewKnowledgeBase(kb, seed.Copilot)
		}
	case "llm":
		var opts []openai.Option
		if hasTemperature {
			opts = append(opts, openai.WithTemperature(temperature))
		}
		var client *openai.Client
		client, err = openai.NewClient(params, mustEnv("PARAM_PREFIX"), opts...)
		if err == nil {
			r, err = responder.NewLLM(client, envString("OPENAI_MODEL", "gpt-4o-mini"), seed.Copilot)
		}
	default:
		slog.Error("unknown responder", "responder", responderKind)
		os.Exit(1)
	}
	if err != nil {
		fatal("failed to create responder", err)
	}

	// ---- Handler ----
	reg, err := inbox.New(seed.Conversations, r,
		inbox.WithLogger(logger),
		inbox.WithSuggestions(seed.Copilot.Suggestions),
	)
	if err != nil {
		fatal("failed to build inbox", err)
	}

	desk, err := usecase.NewDesk(reg, usecase.WithLogger(logger))
	if err != nil {
		fatal("failed to create desk", err)
	}

	h, err := handler.NewHandler(desk,
		handler.WithLogger(logger),
		handler.WithWaitTimeout(time.Duration(envInt("WAIT_TIMEOUT_MS", 10000))*time.Millisecond),
	)
	if err != nil {
		fatal("failed to create handler", err)
	}

	slog.Info("support copilot ready", "desk", desk.ID(), "seed_source", seedSource, "responder", responderKind)
	lambda.Start(h.Handle)
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// envFloat reports false when key is unset or not a number.
func envFloat(key string) (float64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring malformed environment variable", "key", key, "value", v)
		return 0, false
	}
	return f, true
}
