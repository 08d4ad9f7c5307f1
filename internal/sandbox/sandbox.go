package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"
)

// ExecResult is the raw outcome of running a command inside the sandbox.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// TimedOut is true when the context deadline tore the run down. Partial
	// output captured up to that point is still populated.
	TimedOut bool
}

// Sandbox is one locked-down container: read-only rootfs, no network, all
// capabilities dropped, memory/CPU/PID limits from Config.
type Sandbox struct {
	config      Config
	cli         *client.Client
	logger      *zap.Logger
	containerID string
	running     bool
	mu          sync.RWMutex
}

// New creates a Sandbox with its own Docker client. The container is not
// started until Start is called.
func New(cfg Config, logger *zap.Logger) (*Sandbox, error) {
	cfg.Validate()
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewWithClient(cfg, cli, logger)
}

// NewWithClient creates a Sandbox sharing an existing Docker client.
func NewWithClient(cfg Config, cli *client.Client, logger *zap.Logger) (*Sandbox, error) {
	if cli == nil {
		return nil, fmt.Errorf("docker client cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Validate()
	return &Sandbox{config: cfg, cli: cli, logger: logger}, nil
}

// Start creates and starts the sandbox container.
func (s *Sandbox) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sandbox is already running")
	}

	if err := s.ensureImage(ctx); err != nil {
		return fmt.Errorf("ensure image: %w", err)
	}

	containerCfg, hostCfg := s.buildContainerConfig()
	resp, err := s.cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return fmt.Errorf("create container: %w", err)
	}
	s.containerID = resp.ID

	if err := s.cli.ContainerStart(ctx, s.containerID, container.StartOptions{}); err != nil {
		_ = s.cli.ContainerRemove(ctx, s.containerID, container.RemoveOptions{Force: true})
		s.containerID = ""
		return fmt.Errorf("start container: %w", err)
	}

	s.running = true
	s.logger.Debug("sandbox started",
		zap.String("image", s.config.Image),
		zap.String("container", s.containerID[:12]))
	return nil
}

// ensureImage pulls the image if it is not present locally.
func (s *Sandbox) ensureImage(ctx context.Context) error {
	if _, _, err := s.cli.ImageInspectWithRaw(ctx, s.config.Image); err == nil {
		return nil
	}

	s.logger.Info("pulling sandbox image", zap.String("image", s.config.Image))
	reader, err := s.cli.ImagePull(ctx, s.config.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", s.config.Image, err)
	}
	defer reader.Close()

	// Drain the reader to block until the pull completes.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %s: %w", s.config.Image, err)
	}
	return nil
}

func (s *Sandbox) buildContainerConfig() (*container.Config, *container.HostConfig) {
	containerCfg := &container.Config{
		Image:      s.config.Image,
		WorkingDir: s.config.WorkDir,
		User:       "nobody",
		Tty:        false,
		// Keep the container alive between exec calls.
		Cmd: []string{"sleep", "infinity"},
	}

	hostCfg := &container.HostConfig{
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges:true"},
		AutoRemove:     true,
		NetworkMode:    "none",
		Resources: container.Resources{
			Memory:     s.config.MemoryMB * 1024 * 1024,
			MemorySwap: s.config.MemoryMB * 1024 * 1024,
			CPUQuota:   int64(s.config.CPUPercent * 100000),
			CPUPeriod:  100000,
			PidsLimit:  &s.config.MaxProcesses,
		},
		Tmpfs: map[string]string{
			"/tmp":           "rw,noexec,nosuid,size=64m",
			s.config.WorkDir: "rw,nosuid,size=64m",
		},
	}

	return containerCfg, hostCfg
}

// Exec runs a command inside the sandbox. The caller's context carries the
// hard deadline: on expiry the exec is abandoned, any output captured so far
// is returned, and TimedOut is set. The untrusted command is never relied on
// to observe the deadline itself.
func (s *Sandbox) Exec(ctx context.Context, cmd []string) (ExecResult, error) {
	s.mu.RLock()
	if !s.running {
		s.mu.RUnlock()
		return ExecResult{}, fmt.Errorf("sandbox is not running")
	}
	containerID := s.containerID
	s.mu.RUnlock()

	execResp, err := s.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   s.config.WorkDir,
		User:         "nobody",
	})
	if err != nil {
		return ExecResult{}, fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := s.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return ExecResult{}, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		done <- copyErr
	}()

	select {
	case copyErr := <-done:
		if copyErr != nil {
			return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1},
				fmt.Errorf("read output: %w", copyErr)
		}
	case <-ctx.Done():
		// Deadline hit. Closing the attach unblocks the copier; the exec'd
		// process dies with the container teardown or reset that follows.
		return ExecResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: true,
		}, nil
	}

	inspectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	inspectResp, err := s.cli.ContainerExecInspect(inspectCtx, execResp.ID)
	if err != nil {
		return ExecResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: -1},
			fmt.Errorf("inspect exec: %w", err)
	}

	return ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspectResp.ExitCode,
	}, nil
}

// Stop stops the sandbox container.
func (s *Sandbox) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	timeout := 10
	if err := s.cli.ContainerStop(ctx, s.containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		_ = s.cli.ContainerRemove(ctx, s.containerID, container.RemoveOptions{Force: true})
	}

	s.running = false
	s.containerID = ""
	return nil
}

// Reset replaces the container with a fresh one, discarding any state a
// previous run may have left in tmpfs.
func (s *Sandbox) Reset(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		return fmt.Errorf("stop sandbox: %w", err)
	}
	return s.Start(ctx)
}

// IsRunning reports whether the container is up.
func (s *Sandbox) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Ping checks that the Docker daemon is reachable.
func (s *Sandbox) Ping(ctx context.Context) error {
	_, err := s.cli.Ping(ctx)
	return err
}

// Close stops the sandbox and releases the Docker client.
func (s *Sandbox) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = s.Stop(ctx)

	if s.cli != nil {
		if err := s.cli.Close(); err != nil {
			return fmt.Errorf("close docker client: %w", err)
		}
	}
	return nil
}
