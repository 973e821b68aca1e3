package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	saazembed "github.com/saazpayhq/saazpay/pkg/embed"
	"gopkg.in/yaml.v3"
)

//go:embed all:saazpay
var files embed.FS

// SettingsFile is the settings document inside a template folder
const SettingsFile = "saazpay.yaml"

// Folders returns the names of the template folders that can be added
func Folders() []string {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Folder returns the template folder name rooted at its own directory
func Folder(name string) (fs.FS, error) {
	info, err := fs.Stat(files, name)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("unknown template folder %q", name)
	}
	return fs.Sub(files, name)
}

// Settings is the document stored in SettingsFile
type Settings struct {
	Pricing saazembed.PricingSettings `yaml:"pricing"`
}

// LoadSettings reads SettingsFile from a template folder. A folder without
// one yields default settings.
func LoadSettings(folder fs.FS) (Settings, error) {
	var s Settings
	data, err := fs.ReadFile(folder, SettingsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.Pricing = s.Pricing.WithDefaults()
			return s, nil
		}
		return s, fmt.Errorf("failed to read %s: %w", SettingsFile, err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse %s: %w", SettingsFile, err)
	}
	s.Pricing = s.Pricing.WithDefaults()
	if err := s.Pricing.Validate(); err != nil {
		return s, fmt.Errorf("invalid %s: %w", SettingsFile, err)
	}
	return s, nil
}
