package config

import (
	"strconv"
	"strings"
	"time"
)

// Report bundles the tunables of the tour-report feature. It is built once
// from the environment and passed into the services explicitly.
type Report struct {
	// ImageDir is the root directory for uploaded gallery images; each
	// report gets its own subdirectory named after its id.
	ImageDir string
	// TmpDir receives uploads before validation moves them into ImageDir.
	TmpDir string

	MaxImageWidth    int
	MaxImageHeight   int
	MaxImageFileSize int64

	// CreationWindowDays is the number of days after an event's end date
	// during which a report may still be created or edited.
	CreationWindowDays int

	PageSize int
	Locale   string

	// ReaderBaseURL is the public reader page; preview links are built from
	// it by appending the report id and the security token.
	ReaderBaseURL string

	// WebmasterEmails receive a copy of the "new report submitted"
	// notification.
	WebmasterEmails []string
}

func NewReport(c map[string]string) Report {
	return Report{
		ImageDir:           GetString(c, "REPORT_IMAGE_DIR", "files/event-blog"),
		TmpDir:             GetString(c, "REPORT_TMP_DIR", "files/event-blog/tmp"),
		MaxImageWidth:      GetInt(c, "REPORT_MAX_IMAGE_WIDTH", 3000),
		MaxImageHeight:     GetInt(c, "REPORT_MAX_IMAGE_HEIGHT", 3000),
		MaxImageFileSize:   GetInt64(c, "REPORT_MAX_IMAGE_FILE_SIZE", 6_000_000),
		CreationWindowDays: GetInt(c, "REPORT_CREATION_WINDOW_DAYS", 30),
		PageSize:           GetInt(c, "REPORT_PAGE_SIZE", 10),
		Locale:             GetString(c, "REPORT_LOCALE", "en"),
		ReaderBaseURL:      GetString(c, "REPORT_READER_URL", ""),
		WebmasterEmails:    getList(c, "REPORT_WEBMASTER_EMAILS"),
	}
}

// CreationWindow returns the window as a duration. A zero or negative day
// count disables late creation entirely.
func (r Report) CreationWindow() time.Duration {
	if r.CreationWindowDays <= 0 {
		return 0
	}
	return time.Duration(r.CreationWindowDays) * 24 * time.Hour
}

func GetInt64(config map[string]string, key string, defaultValue int64) int64 {
	if config == nil {
		return defaultValue
	}

	s, ok := config[key]
	if !ok {
		return defaultValue
	}

	asInt, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultValue
	}

	return asInt
}

func getList(config map[string]string, key string) []string {
	raw := GetString(config, key, "")
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
