package appclient

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/mattjperez/micro-rdk/internal/robotconfig"
)

const (
	RobotConfigFile = "robot.yaml"
	AgentConfigFile = "agent.yaml"
)

// FileClient serves the control-plane contract from YAML documents in a
// directory. Edits to the files are picked up on the next request.
type FileClient struct {
	fs  afero.Fs
	dir string
	now func() time.Time
}

func NewFileClient(fs afero.Fs, dir string) *FileClient {
	return &FileClient{fs: fs, dir: dir, now: time.Now}
}

func (c *FileClient) GetAppConfig(ctx context.Context, _ string) (*robotconfig.ConfigResponse, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}
	var cfg robotconfig.RobotConfig
	if err := c.read(RobotConfigFile, &cfg); err != nil {
		return nil, time.Time{}, err
	}
	return &robotconfig.ConfigResponse{Config: &cfg}, c.now(), nil
}

func (c *FileClient) GetAgentConfig(ctx context.Context) (*robotconfig.DeviceAgentConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var cfg robotconfig.DeviceAgentConfig
	if err := c.read(AgentConfigFile, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *FileClient) read(name string, into any) error {
	path := filepath.Join(c.dir, name)
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s", path)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return errors.Wrapf(err, "cannot parse %s", path)
	}
	return nil
}
