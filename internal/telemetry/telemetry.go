// Package telemetry provides the structured logger shared across the
// server, generalizing the teacher's tagged log.Printf convention
// ("[REPLICATION] ...", "[CLUSTER] ...") into logrus fields.
package telemetry

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the package-level structured logger every component logs
// through, tagged with a "component" field the way the teacher tagged
// its log lines with a bracketed prefix.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// For returns a logger scoped to one component, e.g. For("replication").
func For(component string) *logrus.Entry {
	return Logger.WithField("component", component)
}

// Conn returns a logger scoped to one connection, tagged with its id
// and role.
func Conn(id, role string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{"conn": id, "role": role})
}
