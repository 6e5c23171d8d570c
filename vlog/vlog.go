// Package vlog provides the structured-logging wrapper used at the
// orchestration layer (the vfilesys facade). The block,
// inode, freemap, directory, and vfile packages stay silent and
// communicate exclusively through returned errors; only the layer that
// orchestrates them logs, the same split the teacher's own
// sync.CopyFileSystem (stdlib log) draws against its silent filesystem
// packages.
package vlog

import "github.com/sirupsen/logrus"

// New returns a logger preconfigured for this project's orchestration
// layer: text formatting, Info level by default.
func New() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}
