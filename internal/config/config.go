package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	APIAddr           string
	TemporalAddress   string
	TemporalTaskQueue string
	PostgresURL       string

	HistoryBackend string
	HistoryPath    string

	Source               string
	InboxDir             string
	ArchiveDir           string
	GoogleCredentials    string
	DriveFolderID        string
	DriveArchiveFolderID string
	MinIOEndpoint        string
	MinIOAccessKey       string
	MinIOSecretKey       string
	MinIOBucket          string
	MinIOPrefix          string
	MinIOArchivePrefix   string
	MinIOSecure          bool

	Sinks            string
	ResultsDir       string
	SheetIDs         map[int]string
	SheetRange       string
	SheetDetailTab   string
	SheetsPacingMS   int
	OracleSpacingMS  int
	Readers          string
	GeminiModel      string
	TesseractLang    string
	PDFDPI           int
	ProfilePath      string
	LogFile          string
	IntervalMinutes  int
	WorkDir          string
	CycleTimeoutSecs int
	PassingPercent   float64
	ArchiveProcessed bool
}

func Load() Config {
	return Config{
		APIAddr:           getenv("OMR_API_ADDR", ":8080"),
		TemporalAddress:   getenv("OMR_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue: getenv("OMR_TEMPORAL_TASK_QUEUE", "omrflow"),
		PostgresURL:       getenv("OMR_POSTGRES_URL", ""),

		HistoryBackend: getenv("OMR_HISTORY_BACKEND", "file"),
		HistoryPath:    getenv("OMR_HISTORY_FILE", "historico_processados.json"),

		Source:               getenv("OMR_SOURCE", "local"),
		InboxDir:             getenv("OMR_INBOX", "./data/in"),
		ArchiveDir:           getenv("OMR_ARCHIVE", "./data/processed"),
		GoogleCredentials:    getenv("OMR_GOOGLE_CREDENTIALS", "credenciais_google.json"),
		DriveFolderID:        getenv("OMR_DRIVE_FOLDER_ID", ""),
		DriveArchiveFolderID: getenv("OMR_DRIVE_PROCESSED_FOLDER_ID", ""),
		MinIOEndpoint:        getenv("OMR_MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:       getenv("OMR_MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:       getenv("OMR_MINIO_SECRET_KEY", ""),
		MinIOBucket:          getenv("OMR_MINIO_BUCKET", "cartoes"),
		MinIOPrefix:          getenv("OMR_MINIO_PREFIX", "inbox/"),
		MinIOArchivePrefix:   getenv("OMR_MINIO_ARCHIVE_PREFIX", "processed/"),
		MinIOSecure:          getenvBool("OMR_MINIO_SECURE", false),

		Sinks:      getenv("OMR_SINKS", "sheets"),
		ResultsDir: getenv("OMR_RESULTS_DIR", "./data/results"),

		SheetIDs: map[int]string{
			44: getenv("OMR_SHEET_ID_44", ""),
			52: getenv("OMR_SHEET_ID_52", ""),
		},
		SheetRange:       getenv("OMR_SHEET_RANGE", "Página1"),
		SheetDetailTab:   getenv("OMR_SHEET_DETAIL_TAB", ""),
		SheetsPacingMS:   getenvInt("OMR_SHEETS_PACING_MS", 2000),
		OracleSpacingMS:  getenvInt("OMR_ORACLE_SPACING_MS", 1000),
		Readers:          getenv("OMR_READERS", "tesseract"),
		GeminiModel:      getenv("OMR_GEMINI_MODEL", "gemini-1.5-flash"),
		TesseractLang:    getenv("OMR_TESSERACT_LANG", "por"),
		PDFDPI:           getenvInt("OMR_PDF_DPI", 300),
		ProfilePath:      getenv("OMR_PROFILE", ""),
		LogFile:          getenv("OMR_LOG_FILE", "monitor.log"),
		IntervalMinutes:  getenvInt("OMR_INTERVAL_MINUTES", 0),
		WorkDir:          getenv("OMR_WORK_DIR", ""),
		CycleTimeoutSecs: getenvInt("OMR_CYCLE_TIMEOUT_SECONDS", 1800),
		PassingPercent:   getenvFloat("OMR_PASSING_PERCENT", 70),
		ArchiveProcessed: getenvBool("OMR_ARCHIVE_PROCESSED", false),
	}
}

// SinkNames splits OMR_SINKS ("sheets|postgres").
func (c Config) SinkNames() []string {
	var out []string
	for _, s := range strings.Split(c.Sinks, "|") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(k string, fallback float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
