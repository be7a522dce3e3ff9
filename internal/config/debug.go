package config

import "os"

func IsDebug() bool {
	return os.Getenv("GAV_DEBUG") == "1"
}
