// Package tgui contains small helpers for building Telegram HTML messages.
//
// All builders escape their text arguments; values of type H are already safe
// to send with parse_mode=HTML.
package tgui
