// Package engine runs the external MySQL client tools that move data:
// mysqldump for backups and mysql for restores.
package engine

import (
	"time"
)

// Kind selects the direction of a transfer
type Kind string

const (
	KindBackup  Kind = "BACKUP"
	KindRestore Kind = "RESTORE"
)

// String returns the upper-case label used in logs and the progress line
func (k Kind) String() string {
	return string(k)
}

// Outcome is the result of one Execute call
type Outcome struct {
	Kind     Kind
	Success  bool
	ExitCode int           // -1 when the process never started or died on a signal
	Err      error         // TransferFailure describing why Success is false
	Duration time.Duration // wall-clock time from launch to exit
	Size     int64         // final artifact size, backup only
}

// Tools names the client binaries
type Tools struct {
	MySQLDump  string
	MySQL      string
	MySQLAdmin string
	Flavor     string // config.FlavorMySQL or config.FlavorMariaDB; empty means mysql
}

// DefaultTools resolves binaries from PATH
func DefaultTools() Tools {
	return Tools{
		MySQLDump:  "mysqldump",
		MySQL:      "mysql",
		MySQLAdmin: "mysqladmin",
	}
}
