package aws

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	pkgtypes "github.com/vietdv277/stratus/pkg/types"
)

var (
	credentialsSectionRe = regexp.MustCompile(`^\[([^\]]+)\]$`)
	configSectionRe      = regexp.MustCompile(`^\[(?:profile\s+)?([^\]]+)\]$`)
	regionRe             = regexp.MustCompile(`^\s*region\s*=\s*(.+)$`)
)

// ListProfiles reads AWS profiles from ~/.aws/credentials and ~/.aws/config.
// "default" sorts first, the rest alphabetically.
func ListProfiles() ([]pkgtypes.AWSProfile, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return listProfiles(
		filepath.Join(home, ".aws", "credentials"),
		filepath.Join(home, ".aws", "config"),
	)
}

func listProfiles(credentialsPath, configPath string) ([]pkgtypes.AWSProfile, error) {
	profileMap := make(map[string]pkgtypes.AWSProfile)

	if creds, err := parseINIFile(credentialsPath, "credentials", credentialsSectionRe); err == nil {
		for _, p := range creds {
			profileMap[p.Name] = p
		}
	}

	if configs, err := parseINIFile(configPath, "config", configSectionRe); err == nil {
		for _, p := range configs {
			existing, ok := profileMap[p.Name]
			if !ok {
				profileMap[p.Name] = p
				continue
			}
			if existing.Region == "" {
				existing.Region = p.Region
				profileMap[p.Name] = existing
			}
		}
	}

	profiles := make([]pkgtypes.AWSProfile, 0, len(profileMap))
	for _, p := range profileMap {
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Name == "default" {
			return true
		}
		if profiles[j].Name == "default" {
			return false
		}
		return profiles[i].Name < profiles[j].Name
	})

	return profiles, nil
}

// ProfileRegion returns the region configured for a profile, or ""
func ProfileRegion(name string) string {
	if name == "" {
		name = "default"
	}
	profiles, err := ListProfiles()
	if err != nil {
		return ""
	}
	for _, p := range profiles {
		if p.Name == name {
			return p.Region
		}
	}
	return ""
}

// parseINIFile parses an AWS INI-style file; section matches a header line
// and captures the profile name
func parseINIFile(path, source string, section *regexp.Regexp) ([]pkgtypes.AWSProfile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var profiles []pkgtypes.AWSProfile
	var current *pkgtypes.AWSProfile

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if matches := section.FindStringSubmatch(line); len(matches) == 2 {
			if current != nil {
				profiles = append(profiles, *current)
			}
			current = &pkgtypes.AWSProfile{
				Name:   strings.TrimSpace(matches[1]),
				Source: source,
			}
			continue
		}

		if current != nil {
			if matches := regionRe.FindStringSubmatch(line); len(matches) == 2 {
				current.Region = strings.TrimSpace(matches[1])
			}
		}
	}

	if current != nil {
		profiles = append(profiles, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return profiles, nil
}
