package mcpconn

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"github.com/ocx/gateway/internal/config"
)

// LaunchDocker starts target's MCP connector inside a sandboxed
// container instead of a host subprocess, attaching to the container's
// stdio the same way Launch attaches to a host process's pipes. Adapted
// from internal/ghostpool.PoolManager's container create/start/attach
// sequence, narrowed from a pre-warmed pool to one container per target.
func LaunchDocker(target config.Target) (*Connector, error) {
	if target.Image == "" {
		return nil, fmt.Errorf("mcpconn: target %q has runtime=docker but no image", target.ID)
	}

	ctx := context.Background()
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("mcpconn: docker client for %q: %w", target.ID, err)
	}

	resp, err := cli.ContainerCreate(ctx, &container.Config{
		Image:        target.Image,
		Cmd:          target.Command,
		Env:          target.Env,
		Tty:          false,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		StdinOnce:    true,
	}, &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
	}, nil, nil, "")
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("mcpconn: creating container for %q: %w", target.ID, err)
	}

	attach, err := cli.ContainerAttach(ctx, resp.ID, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
	})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("mcpconn: attaching to container for %q: %w", target.ID, err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		attach.Close()
		cli.Close()
		return nil, fmt.Errorf("mcpconn: starting container for %q: %w", target.ID, err)
	}

	containerID := resp.ID
	return newConnector(attach.Conn, attach.Reader, func() error {
		defer cli.Close()
		removeCtx := context.Background()
		return cli.ContainerRemove(removeCtx, containerID, types.ContainerRemoveOptions{Force: true})
	}), nil
}
