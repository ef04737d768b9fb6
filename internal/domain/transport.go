package domain

// TransportType identifies the storage backend type
type TransportType string

const (
	TransportLocal  TransportType = "local"
	TransportGDrive TransportType = "gdrive"
	TransportSMB    TransportType = "smb"
	TransportSlots  TransportType = "slots"
)

// IsValid checks if the transport type is a known value
func (t TransportType) IsValid() bool {
	switch t {
	case TransportLocal, TransportGDrive, TransportSMB, TransportSlots:
		return true
	}
	return false
}

// Transport defines a storage backend configuration
type Transport struct {
	// Name is the unique identifier
	Name string `mapstructure:"name"`

	// Type identifies the backend
	Type TransportType `mapstructure:"type"`

	// Root path within the backend
	Root string `mapstructure:"root"`

	// Extension overrides the canonical file extension of the backend
	Extension string `mapstructure:"extension"`

	// Credentials path for auth (gdrive client secrets JSON)
	Credentials string `mapstructure:"credentials"`

	// TokenPath is where the gdrive OAuth token is cached
	TokenPath string `mapstructure:"token_path"`

	// Host and Share address an SMB share
	Host  string `mapstructure:"host"`
	Share string `mapstructure:"share"`

	// User, Domain and Password authenticate against SMB.
	// An empty password is looked up in the OS keyring.
	User     string `mapstructure:"user"`
	Domain   string `mapstructure:"domain"`
	Password string `mapstructure:"password"`

	// Slots is the number of slots per bank (slots backend)
	Slots int `mapstructure:"slots"`
}
