// Package logx is the tracker's logging layer over zerolog.
//
// Console records are one human-readable line with a short caller; the
// optional file sink keeps JSON. Service.Apply changes level and sinks at
// runtime so a config reload can turn on debug logging without a restart.
package logx
