// Package template expands {placeholder} tokens in snapshot notes and in
// the built-in documents used to regenerate required files.
package template

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Builtins returns the placeholder values derived from now and the host.
//
//	{date}      YYYY-MM-DD
//	{time}      HH:MM:SS
//	{datetime}  YYYY-MM-DD HH:MM:SS
//	{iso8601}   RFC 3339
//	{unix}      Unix seconds
//	{user}      current username
//	{hostname}  short host name
//	{arch}      GOARCH
func Builtins(now time.Time) map[string]string {
	vars := map[string]string{
		"date":     now.Format("2006-01-02"),
		"time":     now.Format("15:04:05"),
		"datetime": now.Format("2006-01-02 15:04:05"),
		"iso8601":  now.Format(time.RFC3339),
		"unix":     fmt.Sprintf("%d", now.Unix()),
		"arch":     runtime.GOARCH,
		"user":     "unknown",
		"hostname": "unknown",
	}
	if u, err := user.Current(); err == nil {
		vars["user"] = u.Username
	}
	if h, err := os.Hostname(); err == nil {
		vars["hostname"] = strings.Split(h, ".")[0]
	}
	return vars
}

// ExpandAt replaces placeholders using the values at now, with vars
// overriding the built-ins. Unknown placeholders are left as written.
func ExpandAt(text string, now time.Time, vars map[string]string) string {
	placeholders := Builtins(now)
	for k, v := range vars {
		placeholders[k] = v
	}

	// Longest keys first so {datetime} is not clobbered by {date}.
	keys := make([]string, 0, len(placeholders))
	for k := range placeholders {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", placeholders[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Expand is ExpandAt using the current time.
func Expand(text string, vars map[string]string) string {
	return ExpandAt(text, time.Now(), vars)
}
