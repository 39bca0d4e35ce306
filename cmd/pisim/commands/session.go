package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/pisim/internal/config"
	"github.com/dyluth/pisim/internal/health"
	"github.com/dyluth/pisim/internal/instance"
	"github.com/dyluth/pisim/internal/pipeline"
	"github.com/dyluth/pisim/internal/printer"
	"github.com/dyluth/pisim/pkg/fabric"
	"github.com/dyluth/pisim/pkg/sample"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
	"github.com/spf13/cobra"
)

// session is everything a role process needs: its configuration, a fabric
// client namespaced to the instance, and its metrics.
type session struct {
	cfg    *config.PisimConfig
	client *fabric.Client
	sink   *metrics.InmemSink
	health *health.Server
}

// openSession loads the configuration, connects to Redis and starts the
// optional health server. runScoped gives the session a fresh namespace.
// ctx bounds the initial connection check.
func openSession(ctx context.Context, cmd *cobra.Command, role pipeline.Kind, runScoped bool) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{"Check pisim.yml or pass --config <path>"},
		)
	}

	namespace := cfg.Instance
	if runScoped {
		namespace = instance.RunName(cfg.Instance, uuid.NewString())
	}

	redisOpts, err := instance.RedisOptions(cfg.RedisURL)
	if err != nil {
		return nil, printer.Error("invalid Redis URL", err.Error(), []string{"Use the form redis://host:port[/db]"})
	}

	client, err := fabric.NewClient(redisOpts, namespace,
		fabric.WithPeerTimeout(cfg.PeerTimeout),
		fabric.WithPollInterval(cfg.PollInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fabric client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"cannot reach Redis",
			err.Error(),
			map[string]string{"Redis": cfg.RedisURL, "Instance": namespace},
			[]string{
				"Start Redis:\n  docker run -p 6379:6379 redis:7-alpine",
				"Point pisim at a running server:\n  pisim --redis-url redis://host:6379 ...",
			},
		)
	}

	s := &session{
		cfg:    cfg,
		client: client,
		sink:   metrics.NewInmemSink(10*time.Second, time.Minute),
	}

	if cfg.HealthPort > 0 {
		s.health = health.NewServer(role.String(), client, s.sink)
		if err := s.health.Start(cfg.HealthPort); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start health server: %w", err)
		}
	}

	log.Printf("[%s] Connected to %s as instance '%s'", role, cfg.RedisURL, client.InstanceName())
	log.Printf("[%s] Endpoints: control=%s samples=%s oracle=%s decisions=%s estimates=%s", role,
		cfg.Endpoints.Control, cfg.Endpoints.Samples, cfg.Endpoints.Oracle, cfg.Endpoints.Decisions, cfg.Endpoints.Estimates)
	return s, nil
}

// loadConfig resolves configuration from file, environment and flags, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.PisimConfig, error) {
	cfg, err := config.LoadOrDefault(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, err
	}

	if redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if instanceID != "" {
		cfg.Instance = instanceID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// builder returns a role builder for this session.
func (s *session) builder() *pipeline.Builder {
	settings := s.cfg.Settings()
	settings.Sink = s.sink
	return pipeline.NewBuilder(s.client, s.cfg.Endpoints, settings)
}

func (s *session) Close() {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.health.Shutdown(ctx); err != nil {
			log.Printf("[Session] Error stopping health server: %v", err)
		}
	}
	if err := s.client.Close(); err != nil {
		log.Printf("[Session] Error closing fabric client: %v", err)
	}
}

// runRole runs one role until it finishes or the process is interrupted.
func runRole(ctx context.Context, role string, run func(context.Context) error) error {
	err := run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return roleError(role, err)
}

// roleError turns a role failure into operator-facing output.
func roleError(role string, err error) error {
	switch {
	case fabric.IsTimeout(err):
		return printer.ErrorWithContext(
			"peer unreachable",
			err.Error(),
			map[string]string{"Role": role},
			[]string{"Check that the peer roles are running", "Raise or unset peer_timeout in pisim.yml"},
		)
	case errors.Is(err, pipeline.ErrRoutingViolation), errors.Is(err, pipeline.ErrProtocolViolation),
		errors.Is(err, sample.ErrEncodingMismatch):
		return printer.ErrorWithContext(
			"protocol violation",
			err.Error(),
			map[string]string{"Role": role},
			[]string{"Make sure every role uses the same precision_bits and endpoints"},
		)
	default:
		return printer.ErrorWithContext(fmt.Sprintf("%s failed", role), err.Error(), nil, nil)
	}
}
