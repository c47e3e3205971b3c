// Package config loads the YAML configuration shared by all commands.
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	BackendRclone = "rclone"
	BackendS3     = "s3"
)

type Config struct {
	Inputs            string `yaml:"inputs"`
	Outputs           string `yaml:"outputs"`
	Results           string `yaml:"results"`
	OrganizeByUser    bool   `yaml:"organize_by_user"`
	ExtractToSource   bool   `yaml:"extract_to_source"`
	IncludeBackupName bool   `yaml:"include_backup_name"`

	// Catalog is the SQLite file recording runs. Empty disables it.
	Catalog  string `yaml:"catalog"`
	Schedule string `yaml:"schedule"`

	SyncBackend string `yaml:"sync_backend"`
	Rclone      Rclone `yaml:"rclone"`
	S3          S3     `yaml:"s3"`
}

type Rclone struct {
	Binary            string   `yaml:"binary"`
	RemoteName        string   `yaml:"remote_name"`
	RemotePath        string   `yaml:"remote_path"`
	MbzArchivePath    string   `yaml:"mbz_archive_path"`
	DeleteAfterUpload bool     `yaml:"delete_after_upload"`
	Flags             []string `yaml:"flags"`
	// Env is added to the environment of every rclone call, for example
	// RCLONE_CONFIG.
	Env map[string]string `yaml:"env"`
}

type S3 struct {
	Bucket            string `yaml:"bucket"`
	Prefix            string `yaml:"prefix"`
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	PathStyle         bool   `yaml:"path_style"`
	MbzArchivePath    string `yaml:"mbz_archive_path"`
	DeleteAfterUpload bool   `yaml:"delete_after_upload"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Inputs:            ".",
		Outputs:           "./extracted",
		Results:           "./results",
		IncludeBackupName: true,
		Catalog:           "catalog.db",
		SyncBackend:       BackendRclone,
		Rclone: Rclone{
			Binary:         "rclone",
			RemoteName:     "remote-name",
			RemotePath:     "Destination",
			MbzArchivePath: "mbz_archive",
			Flags: []string{
				"--progress",
				"--stats=1s",
				"--tpslimit=5",
				"--tpslimit-burst=5",
				"--no-update-modtime",
			},
		},
		S3: S3{
			MbzArchivePath: "mbz_archive",
		},
	}
}

// Load reads path on top of the defaults. found is false when the file does
// not exist, in which case the defaults are returned without error.
func Load(path string) (cfg *Config, found bool, err error) {
	cfg = Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, true, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, true, nil
}

func (c *Config) Validate() error {
	if c.Outputs == "" {
		return errors.New("outputs must not be empty")
	}
	if c.Results == "" && !c.ExtractToSource {
		return errors.New("results must not be empty")
	}

	switch c.SyncBackend {
	case BackendRclone:
		if c.Rclone.Binary == "" {
			return errors.New("rclone.binary must not be empty")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("s3.bucket is required for the s3 backend")
		}
	default:
		return errors.Errorf("unknown sync_backend %q", c.SyncBackend)
	}
	return nil
}

// DeleteAfterUpload reports whether the selected backend moves results.
func (c *Config) DeleteAfterUpload() bool {
	if c.SyncBackend == BackendS3 {
		return c.S3.DeleteAfterUpload
	}
	return c.Rclone.DeleteAfterUpload
}
