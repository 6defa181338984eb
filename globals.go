package scrapedash

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

const (
	PackageName = "github.com/scrapedash/scrapedash"
	ServiceName = "scrapedash"

	// ClientConfigFile is the CLI client settings file, relative to the
	// user's home directory.
	ClientConfigFile = ".scrapedash.yml"

	// DefaultServiceConfigurationFileName is the settings file the service
	// reads when no path is given.
	DefaultServiceConfigurationFileName = "/etc/scrapedash.yml"

	// environment variables that override secrets in the settings file.
	MongoURLEnvVar               = "SCRAPEDASH_MONGO_URL"
	IdentityClientIDEnvVar       = "SCRAPEDASH_IDENTITY_CLIENT_ID"
	IdentityClientSecretEnvVar   = "SCRAPEDASH_IDENTITY_CLIENT_SECRET"
	OpenAIAPIKeyEnvVar           = "SCRAPEDASH_OPENAI_API_KEY"
	TelegramTokenEnvVar          = "SCRAPEDASH_TELEGRAM_TOKEN"
	AuthSigningSecretEnvVar      = "SCRAPEDASH_AUTH_SECRET"
	S3AccessKeyEnvVar            = "SCRAPEDASH_S3_ACCESS_KEY"
	S3SecretKeyEnvVar            = "SCRAPEDASH_S3_SECRET_KEY"
	DefaultAPIListenAddr         = ":8080"
	DefaultPageSize              = 10
	MaxPageSize                  = 100
	DefaultRunTimeout            = 30
	DefaultLocalQueueWorkers     = 4
	DefaultMaxFetchBytes         = 10 * 1024 * 1024
	DefaultLLMTimeoutSecs        = 80
	DefaultJWKSCacheMinutes      = 5
	DefaultClockSkewSeconds      = 30
	DefaultIdentityRolePageSize  = 100
	DefaultArtifactStorageFolder = "artifacts"
)

// BuildRevision is set at link time.
var BuildRevision = ""

// UserRole is a role held by a user. Roles are stored and transmitted as
// small integers.
type UserRole int64

const (
	UserRoleUnknown UserRole = iota
	UserRoleUser
	UserRoleMember
	UserRoleAdmin
)

// ValidUserRoles lists the roles that can be assigned.
var ValidUserRoles = []UserRole{UserRoleUser, UserRoleMember, UserRoleAdmin}

func (r UserRole) String() string {
	switch r {
	case UserRoleUnknown:
		return "Unknown"
	case UserRoleUser:
		return "User"
	case UserRoleMember:
		return "Member"
	case UserRoleAdmin:
		return "Admin"
	default:
		return fmt.Sprintf("Unknown user role: %d", r)
	}
}

// Validate returns an error if the role cannot be assigned to a user.
func (r UserRole) Validate() error {
	for _, valid := range ValidUserRoles {
		if r == valid {
			return nil
		}
	}
	return errors.Errorf("invalid role %d", r)
}

// TaskStatus is the lifecycle state of a task or one of its runs.
type TaskStatus int64

const (
	TaskStatusUnknown TaskStatus = iota
	TaskStatusCreated
	TaskStatusRunning
	TaskStatusComplete
	TaskStatusFailed
	TaskStatusCancelled
	TaskStatusPending
)

func (s TaskStatus) String() string {
	switch s {
	case TaskStatusCreated:
		return "created"
	case TaskStatusRunning:
		return "running"
	case TaskStatusComplete:
		return "completed"
	case TaskStatusFailed:
		return "failed"
	case TaskStatusCancelled:
		return "canceled"
	case TaskStatusPending:
		return "pending"
	default:
		return "unknown"
	}
}

// IsFinished returns true for statuses that end a run.
func (s TaskStatus) IsFinished() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed || s == TaskStatusCancelled
}

// UnmarshalJSON rejects status values outside the known range.
func (s *TaskStatus) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.Wrap(err, "parsing task status")
	}
	if v < int64(TaskStatusUnknown) || v > int64(TaskStatusPending) {
		return errors.Errorf("invalid TaskStatus value: %d", v)
	}
	*s = TaskStatus(v)
	return nil
}

// TaskRunType records what triggered a run.
type TaskRunType int64

const (
	TaskRunTypeUnknown TaskRunType = iota
	TaskRunTypePreview
	TaskRunTypeSingle
	TaskRunTypePeriodic
)

func (t TaskRunType) String() string {
	switch t {
	case TaskRunTypePreview:
		return "preview"
	case TaskRunTypeSingle:
		return "single"
	case TaskRunTypePeriodic:
		return "periodic"
	default:
		return "unknown"
	}
}

// TaskPeriod is how often a task runs.
type TaskPeriod int64

const (
	TaskPeriodUnknown TaskPeriod = iota
	TaskPeriodSingle
	TaskPeriodMinutely
	TaskPeriodHourly
	TaskPeriodDaily
	TaskPeriodWeekly
	TaskPeriodMonthly
)

// IsPeriodic returns true for periods that reschedule after each run.
func (p TaskPeriod) IsPeriodic() bool {
	return p >= TaskPeriodMinutely && p <= TaskPeriodMonthly
}

// CronSpec returns the schedule descriptor for periodic tasks.
func (p TaskPeriod) CronSpec() (string, error) {
	switch p {
	case TaskPeriodMinutely:
		return "@every 1m", nil
	case TaskPeriodHourly:
		return "@hourly", nil
	case TaskPeriodDaily:
		return "@daily", nil
	case TaskPeriodWeekly:
		return "@weekly", nil
	case TaskPeriodMonthly:
		return "@monthly", nil
	default:
		return "", errors.Errorf("period %d does not repeat", p)
	}
}

func (p TaskPeriod) String() string {
	switch p {
	case TaskPeriodSingle:
		return "single"
	case TaskPeriodMinutely:
		return "minutely"
	case TaskPeriodHourly:
		return "hourly"
	case TaskPeriodDaily:
		return "daily"
	case TaskPeriodWeekly:
		return "weekly"
	case TaskPeriodMonthly:
		return "monthly"
	default:
		return "unknown"
	}
}

type OutputType int64

const (
	OutputTypeUnknown OutputType = iota
	OutputTypeJson
	OutputTypeCsv
	OutputTypeGpt
	OutputTypeMarkdown
)

// Format returns the name the extraction prompt uses for the output type.
func (o OutputType) Format() string {
	switch o {
	case OutputTypeJson:
		return OutputFormatJSON
	case OutputTypeCsv:
		return OutputFormatCSV
	case OutputTypeMarkdown:
		return OutputFormatMarkdown
	case OutputTypeGpt:
		return "GPT"
	default:
		return ""
	}
}

const (
	OutputFormatJSON     = "JSON"
	OutputFormatCSV      = "CSV"
	OutputFormatMarkdown = "MARKDOWN"
)

// OutputTypeFromFormat maps a format name back to its output type.
func OutputTypeFromFormat(format string) OutputType {
	switch format {
	case OutputFormatJSON:
		return OutputTypeJson
	case OutputFormatCSV:
		return OutputTypeCsv
	case OutputFormatMarkdown:
		return OutputTypeMarkdown
	default:
		return OutputTypeUnknown
	}
}

type SourceType int64

const (
	SourceTypeUnknown SourceType = iota
	SourceTypeUrl
)

type TargetType int64

const (
	TargetTypeUnknown TargetType = iota
	TargetTypeAuto
	TargetTypeXpath
	TargetTypeQuery
)

// SenderKey names a notification channel.
type SenderKey int

const (
	SenderTelegram SenderKey = iota
)

func (k SenderKey) String() string {
	switch k {
	case SenderTelegram:
		return "telegram"
	default:
		return "<error:unknown sender>"
	}
}
