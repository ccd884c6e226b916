// Package autoload configures the global logger from LOGGER_* env
// vars as a side effect of being imported.
package autoload

import (
	configx "github.com/claimr-app/claimr-mesh/pkg/config"
	logx "github.com/claimr-app/claimr-mesh/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOGGER")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
