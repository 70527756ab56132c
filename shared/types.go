package shared

const (
	SQLITE_DRIVER   = "sqlite"
	POSTGRES_DRIVER = "postgres"
	MYSQL_DRIVER    = "mysql"
)

type ServerConfig struct {
	Crm      CrmConfig      `mapstructure:"crm" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Google   GoogleConfig   `mapstructure:"google"`
	Smtp     SmtpConfig     `mapstructure:"smtp"`
	Twilio   TwilioConfig   `mapstructure:"twilio"`
}

type CrmConfig struct {
	PrivateKeyPem string         `mapstructure:"privateKeyPem" validate:"required"`
	AppURL        string         `mapstructure:"appURL"`
	Cron          CronConfig     `mapstructure:"cron" validate:"required"`
	Listener      ListenerConfig `mapstructure:"listener" validate:"required"`
	Import        ImportConfig   `mapstructure:"import"`
	Uploads       UploadsConfig  `mapstructure:"uploads"`
	Workers       int            `mapstructure:"workers" validate:"omitempty,min=1,max=25"`
}

type DatabaseConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=sqlite postgres mysql"`
	PassPhrase string `mapstructure:"passPhrase"`
	Dir        string `mapstructure:"dir"`
	Dsn        string `mapstructure:"dsn"`
	Host       string `mapstructure:"host"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	Name       string `mapstructure:"name"`
}

type GoogleConfig struct {
	ApplicationCredentials string         `mapstructure:"applicationCredentials"`
	Storage                StorageConfig  `mapstructure:"storage"`
	Calendar               CalendarConfig `mapstructure:"calendar"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

type ImportConfig struct {
	MaxContacts int `mapstructure:"maxContacts" validate:"omitempty,min=1"`
}

type UploadsConfig struct {
	MaxBytes int64  `mapstructure:"maxBytes" validate:"omitempty,min=1"`
	Dir      string `mapstructure:"dir"`
}

type StorageConfig struct {
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	BackupSchedule string `mapstructure:"backupSchedule" validate:"required_with=EnableBackup"`
	EnableBackup   bool   `mapstructure:"enableBackup"`
}

type CalendarConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CalendarID string `mapstructure:"calendarId" validate:"required_with=Enabled"`
	TimeZone   string `mapstructure:"timeZone"`
}

type SmtpConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"required_with=Host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type TwilioConfig struct {
	AccountSid          string `mapstructure:"accountSid"`
	AuthToken           string `mapstructure:"authToken" validate:"required_with=AccountSid"`
	MessagingServiceSid string `mapstructure:"messagingServiceSid" validate:"required_with=AccountSid"`
}
