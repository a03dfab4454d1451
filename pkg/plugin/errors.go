package plugin

import "errors"

var (
	ErrEmptyCommand = errors.New("plugin: empty command")
	ErrParseCommand = errors.New("plugin: parse command")
	ErrStart        = errors.New("plugin: start process")
	ErrPipe         = errors.New("plugin: open output pipe")
	ErrExit         = errors.New("plugin: process failed")
)
