package terminal

import "strings"

var ciEnvVars = []string{
	"CI",
	"CONTINUOUS_INTEGRATION",
	"GITHUB_ACTIONS",
	"TRAVIS",
	"CIRCLECI",
	"JENKINS_URL",
	"BUILD_NUMBER",
	"GITLAB_CI",
	"APPVEYOR",
	"BUILDKITE",
	"DRONE",
	"TF_BUILD",
}

// colorTerminals are TERM values, or prefixes before a '-', known to
// handle basic ANSI colors.
var colorTerminals = []string{
	"xterm",
	"screen",
	"tmux",
	"rxvt",
	"vt100",
	"vt220",
	"ansi",
	"linux",
	"cygwin",
	"putty",
}

func (d detector) isCI() bool {
	for _, name := range ciEnvVars {
		v := d.getenv(name)
		if v == "" {
			continue
		}
		if name == "CI" {
			lower := strings.ToLower(strings.TrimSpace(v))
			return lower != "false" && lower != "0" && lower != "no"
		}
		return true
	}
	return false
}

// termSupportsColor reports false for unknown terminals.
func (d detector) termSupportsColor() bool {
	t := strings.ToLower(strings.TrimSpace(d.getenv("TERM")))
	if t == "" || t == "dumb" {
		return false
	}
	for _, ct := range colorTerminals {
		if t == ct || strings.HasPrefix(t, ct+"-") {
			return true
		}
	}
	return false
}
