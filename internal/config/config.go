package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/gradebook/internal/apperr"
	"github.com/shrimpsizemoose/gradebook/internal/validate"
)

const (
	DefaultPath = "config.toml"
	EnvPath     = "GRADEBOOK_CONFIG"
)

type Config struct {
	DatabasePath   string `toml:"database_path" validate:"required"`
	BackupAuto     bool   `toml:"backup_auto"`
	BackupInterval int    `toml:"backup_interval" validate:"min=1"`
	BackupDir      string `toml:"backup_dir" validate:"required"`
	DefaultYear    int    `toml:"default_year" validate:"min=1000,max=9999"`

	UITheme          string `toml:"ui_theme" validate:"oneof=light dark"`
	Language         string `toml:"language" validate:"oneof=ko en"`
	AutoSave         bool   `toml:"auto_save"`
	SearchAuto       bool   `toml:"search_auto"`
	StatsAutoRefresh bool   `toml:"stats_auto_refresh"`
	ShortcutsEnabled bool   `toml:"shortcuts_enabled"`
}

// Defaults returns the settings used for every key missing from the file.
// BackupDir is left empty and derived from DatabasePath at load time.
func Defaults(now time.Time) Config {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return Config{
		DatabasePath:     filepath.Join(dir, "gradebook", "student.db"),
		BackupAuto:       true,
		BackupInterval:   7,
		DefaultYear:      now.Year(),
		UITheme:          "light",
		Language:         "ko",
		AutoSave:         true,
		SearchAuto:       true,
		StatsAutoRefresh: true,
		ShortcutsEnabled: true,
	}
}

// Manager owns the settings file. Keys it does not know about are kept in
// raw and written back untouched.
type Manager struct {
	Path   string
	Config Config
	raw    map[string]any

	// backup_dir is empty on disk and follows database_path
	derivedBackupDir bool
}

// Load reads the settings at path, fills in missing keys from Defaults and
// writes the merged result back when anything was missing. A missing file
// is created.
func Load(path string) (*Manager, error) {
	return load(path, time.Now())
}

func load(path string, now time.Time) (*Manager, error) {
	m := &Manager{
		Path:   path,
		Config: Defaults(now),
		raw:    map[string]any{},
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info.Printf("Config %s not found, creating it with defaults", path)
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &m.raw); err != nil {
			return nil, fmt.Errorf("error reading config file %s\n> Error: %w", path, err)
		}
		if err := toml.Unmarshal(data, &m.Config); err != nil {
			return nil, fmt.Errorf("error reading config file %s\n> Error: %w", path, err)
		}
	}

	m.derivedBackupDir = m.Config.BackupDir == ""
	if m.derivedBackupDir {
		m.Config.BackupDir = BackupDirFor(m.Config.DatabasePath)
	}

	if err := validate.Struct(m.Config); err != nil {
		return nil, apperr.Invalid("load config", "%s: %v", path, err)
	}

	var missing []string
	for _, key := range Keys() {
		if _, ok := m.raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		logger.Debug.Printf("Backfilling config keys: %v", missing)
		if err := m.Save(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Save writes known settings over the raw document and persists it.
func (m *Manager) Save() error {
	known, err := toMap(m.Config)
	if err != nil {
		return err
	}
	for k, v := range known {
		m.raw[k] = v
	}
	if m.derivedBackupDir {
		m.raw["backup_dir"] = ""
	}

	data, err := toml.Marshal(m.raw)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if dir := filepath.Dir(m.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return apperr.IO("save config", err)
		}
	}
	if err := os.WriteFile(m.Path, data, 0o644); err != nil {
		return apperr.IO("save config", err)
	}
	return nil
}

// Keys lists the recognized settings in declaration order.
func Keys() []string {
	t := reflect.TypeOf(Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		keys = append(keys, t.Field(i).Tag.Get("toml"))
	}
	return keys
}

// Get renders the value of a recognized key.
func (m *Manager) Get(key string) (string, error) {
	f, err := m.field(&m.Config, key)
	if err != nil {
		return "", err
	}
	return fmt.Sprint(f.Interface()), nil
}

// Set parses value according to the key's type, validates the result and
// persists it.
func (m *Manager) Set(key, value string) error {
	next := m.Config
	f, err := m.field(&next, key)
	if err != nil {
		return err
	}

	switch f.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return apperr.Invalid("set config", "%s expects true or false, got %q", key, value)
		}
		f.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return apperr.Invalid("set config", "%s expects an integer, got %q", key, value)
		}
		f.SetInt(int64(n))
	default:
		f.SetString(value)
	}

	derived := m.derivedBackupDir
	if key == "backup_dir" {
		derived = value == ""
	}
	if derived {
		next.BackupDir = BackupDirFor(next.DatabasePath)
	}

	if err := validate.Struct(next); err != nil {
		return apperr.Invalid("set config", "%v", err)
	}
	m.Config = next
	m.derivedBackupDir = derived
	return m.Save()
}

// BackupDirFor is the backup directory used when backup_dir is left empty.
func BackupDirFor(databasePath string) string {
	return filepath.Join(filepath.Dir(databasePath), "backups")
}

func (m *Manager) field(c *Config, key string) (reflect.Value, error) {
	v := reflect.ValueOf(c).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") == key {
			return v.Field(i), nil
		}
	}
	return reflect.Value{}, apperr.Invalid("config", "unknown key %q", key)
}

func toMap(c Config) (map[string]any, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	out := map[string]any{}
	if err := toml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return out, nil
}
