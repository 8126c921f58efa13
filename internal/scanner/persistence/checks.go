package persistence

import (
	"regexp"
	"strings"

	"github.com/collectifor/collectifor/internal/scanner/entropy"
)

// Severity values recorded in meta.severity.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// Rule names, one per check.
const (
	RuleServiceName       = "systemd-high-entropy-name"
	RuleServiceWritable   = "systemd-writable-exec"
	RuleServiceSuspicious = "systemd-suspicious-exec"
	RuleCronWritable      = "cron-writable-path"
	RuleCronSuspicious    = "cron-suspicious-command"
	RuleCronEveryMinute   = "cron-every-minute"
	RuleProfileSuspicious = "profile-suspicious-command"
	RuleProfileAlias      = "profile-alias"
	RuleAuthorizedKeys    = "ssh-authorized-keys"
	RuleSSHConfig         = "ssh-suspicious-config"
)

// WritableDirs are host directories any local user can write to.
var WritableDirs = []string{"/tmp", "/var/tmp", "/dev/shm", "/run/user"}

var suspiciousCommand = []*regexp.Regexp{
	regexp.MustCompile(`curl\s+.*\|`),
	regexp.MustCompile(`wget\s+.*\|`),
	regexp.MustCompile(`base64`),
	regexp.MustCompile(`python\s+-c`),
	regexp.MustCompile(`nc\s+-e`),
	regexp.MustCompile(`bash\s+-i`),
	regexp.MustCompile(`/tmp/`),
	regexp.MustCompile(`/dev/shm/`),
	regexp.MustCompile(`chmod\s+\+s`),
	regexp.MustCompile(`chattr\s+\+\w`),
	regexp.MustCompile(`scp.*:`),
	regexp.MustCompile(`ssh.*@`),
	regexp.MustCompile(`socat`),
}

// NameEntropyThreshold and NameMinLength bound the random-looking unit name
// check.
const (
	NameEntropyThreshold = 4.0
	NameMinLength        = 6
)

// Hit is one check that fired on an entry.
type Hit struct {
	Rule        string
	Indicator   string
	Severity    string
	Description string
}

// IsWritable reports whether cmd starts in a world-writable directory.
// systemd exec prefixes (-@:+!) are ignored.
func IsWritable(cmd string) bool {
	cmd = strings.TrimLeft(strings.TrimSpace(cmd), "-@:+!")
	for _, w := range WritableDirs {
		if strings.HasPrefix(cmd, w) {
			return true
		}
	}
	return false
}

// IsSuspicious reports whether cmd matches a known download, reverse shell
// or tampering pattern.
func IsSuspicious(cmd string) bool {
	for _, re := range suspiciousCommand {
		if re.MatchString(cmd) {
			return true
		}
	}
	return false
}

// HighEntropyName reports whether a unit name looks randomly generated.
func HighEntropyName(name string) bool {
	if len(name) < NameMinLength {
		return false
	}
	h, err := entropy.Shannon(strings.NewReader(name))
	if err != nil {
		return false
	}
	return h >= NameEntropyThreshold
}

// CheckExecStart evaluates one ExecStart command of the named service.
func CheckExecStart(service, cmd string) []Hit {
	var hits []Hit
	if HighEntropyName(service) {
		hits = append(hits, Hit{RuleServiceName, "High entropy service name", SeverityHigh,
			"Service name resembles a randomly generated malware loader."})
	}
	if IsWritable(cmd) {
		hits = append(hits, Hit{RuleServiceWritable, "Executable in writable directory", SeverityHigh,
			"ExecStart uses a writable path: " + cmd})
	}
	if IsSuspicious(cmd) {
		hits = append(hits, Hit{RuleServiceSuspicious, "Suspicious ExecStart command", SeverityHigh,
			"ExecStart contains potentially malicious command patterns."})
	}
	return hits
}

// ExecStarts returns the trimmed ExecStart values of a unit file.
func ExecStarts(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, "=")
		if !ok || strings.TrimSpace(key) != "ExecStart" {
			continue
		}
		if val = strings.TrimSpace(val); val != "" {
			out = append(out, val)
		}
	}
	return out
}

// CronEntry is one scheduled command.
type CronEntry struct {
	Schedule []string
	User     string
	Command  string
}

// ParseCronLine parses a crontab line. System crontabs (/etc/crontab,
// /etc/cron.d) carry a user field before the command. Comments, blank
// lines and variable assignments are rejected.
func ParseCronLine(line string, system bool) (CronEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return CronEntry{}, false
	}
	fields := strings.Fields(line)
	if strings.Contains(fields[0], "=") {
		return CronEntry{}, false
	}
	n := 5
	if strings.HasPrefix(fields[0], "@") {
		n = 1
	}
	if system {
		n++
	}
	if len(fields) <= n {
		return CronEntry{}, false
	}
	e := CronEntry{Schedule: fields[:n], Command: strings.Join(fields[n:], " ")}
	if system {
		e.Schedule, e.User = fields[:n-1], fields[n-1]
	}
	return e, true
}

// CheckCron evaluates one cron entry.
func CheckCron(e CronEntry) []Hit {
	var hits []Hit
	if IsWritable(e.Command) {
		hits = append(hits, Hit{RuleCronWritable, "Writable-path cron job", SeverityHigh,
			"Cron executes script from writable path: " + e.Command})
	}
	if IsSuspicious(e.Command) {
		hits = append(hits, Hit{RuleCronSuspicious, "Suspicious cron job command", SeverityHigh,
			"Cron job contains suspicious patterns."})
	}
	if len(e.Schedule) >= 2 && e.Schedule[0] == "*" && e.Schedule[1] == "*" {
		hits = append(hits, Hit{RuleCronEveryMinute, "High-frequency cron job", SeverityMedium,
			"Executes every minute, a common persistence trick."})
	}
	return hits
}

// CheckProfileLine evaluates one shell profile line.
func CheckProfileLine(line string) []Hit {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	var hits []Hit
	if IsSuspicious(line) {
		hits = append(hits, Hit{RuleProfileSuspicious, "Suspicious profile command", SeverityHigh,
			"Potential persistence via shell profile modification."})
	}
	if strings.HasPrefix(line, "alias ") && strings.Contains(line, "=") {
		hits = append(hits, Hit{RuleProfileAlias, "Suspicious alias", SeverityMedium,
			"Shell alias may override system binaries."})
	}
	return hits
}

// CheckSSHConfig flags client configs that can tunnel or switch identities.
func CheckSSHConfig(content string) []Hit {
	if !strings.Contains(content, "ProxyCommand") && !strings.Contains(content, "Match") {
		return nil
	}
	return []Hit{{RuleSSHConfig, "Suspicious SSH config", SeverityHigh,
		"SSH client config might enable tunneling or covert channels."}}
}
