package config

const (
	defaultStateDir              = "application_state"
	defaultDownloadRoot          = "downloads"
	defaultScreenshotsDir        = "screenshots"
	defaultLogDir                = "logs"
	defaultAuthenticatedTitle    = "Dashboard"
	defaultBrowser               = "chromium"
	defaultLoginRetries          = 3
	defaultMaxRestarts           = 2
	defaultRestartBackoffSeconds = 5
	defaultElementSeconds        = 10
	defaultSearchResultsSeconds  = 30
	defaultDialogSeconds         = 15
	defaultLoginSeconds          = 15
	defaultPageLoadSeconds       = 60
	defaultDownloadSeconds       = 120
	defaultSettleMillis          = 750
	defaultWorklistPath          = "data/navigation.xlsx"
	defaultWorklistSheet         = "Sheet1"
	defaultLedgerFile            = "downloads.csv"
	defaultJournalFile           = "journal.db"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 30
	defaultNotifyRequestTimeout  = 10
)

// Worklist field names accepted as keys of [worklist.columns].
const (
	FieldOrderID    = "order_id"
	FieldReportName = "report_name"
	FieldReportType = "report_type"
	FieldTargetPage = "target_page"
	FieldAccount    = "account"
	FieldPriority   = "priority"
)

// DefaultColumns maps worklist fields to the spreadsheet headers used by the
// navigation workbook.
func DefaultColumns() map[string]string {
	return map[string]string{
		FieldAccount:    "ACCOUNT NAME",
		FieldOrderID:    "AUTO NAME",
		FieldReportType: "REPORT TYPE",
		FieldReportName: "REPORT NAME",
		FieldPriority:   "PRIORITY",
		FieldTargetPage: "PAGE",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:       defaultStateDir,
			DownloadRoot:   defaultDownloadRoot,
			ScreenshotsDir: defaultScreenshotsDir,
			LogDir:         defaultLogDir,
		},
		ERP: ERP{
			AuthenticatedTitle: defaultAuthenticatedTitle,
		},
		Session: Session{
			Browser:               defaultBrowser,
			Headless:              false,
			LoginRetries:          defaultLoginRetries,
			MaxRestarts:           defaultMaxRestarts,
			RestartBackoffSeconds: defaultRestartBackoffSeconds,
		},
		Timeouts: Timeouts{
			ElementSeconds:       defaultElementSeconds,
			SearchResultsSeconds: defaultSearchResultsSeconds,
			DialogSeconds:        defaultDialogSeconds,
			LoginSeconds:         defaultLoginSeconds,
			PageLoadSeconds:      defaultPageLoadSeconds,
			DownloadSeconds:      defaultDownloadSeconds,
			SettleMillis:         defaultSettleMillis,
		},
		Worklist: Worklist{
			Path:    defaultWorklistPath,
			Sheet:   defaultWorklistSheet,
			Columns: DefaultColumns(),
		},
		Journal: Journal{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunStart:       true,
			RunComplete:    true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
