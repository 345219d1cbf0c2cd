package platform

import "strings"

const ruleNameMarker = "rule name:"

// ParseFirewallRules extracts the display names from the block listing printed
// by "netsh advfirewall firewall show rule name=all". Every block starts with a
// "Rule Name:" line; blocks without a name are ignored.
func ParseFirewallRules(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		if !strings.HasPrefix(strings.ToLower(line), ruleNameMarker) {
			continue
		}
		name := strings.TrimSpace(line[len(ruleNameMarker):])
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// firewallQueryMatched reports whether a single-rule query printed at least one rule.
func firewallQueryMatched(output string) bool {
	if strings.TrimSpace(output) == "" {
		return false
	}
	if strings.Contains(output, "No rules match") {
		return false
	}
	return len(ParseFirewallRules(output)) > 0
}

// taskQueryMatched reports whether a single-task query succeeded.
func taskQueryMatched(output string) bool {
	return strings.TrimSpace(output) != "" && !strings.Contains(output, "ERROR")
}
