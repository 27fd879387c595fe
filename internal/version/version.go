package version

import (
	"fmt"
	"runtime"
)

var (
	// Name of the application
	AppName = "dotsync"

	// Version of the application
	Version = "0.2.0-dev"

	// Git commit hash of the application
	Revision = "HEAD"

	// Build date of the application
	BuildDate = ""
)

func Detailed() string {
	return fmt.Sprintf("%s; rev %s; built %s; %s; %s/%s",
		Version, Revision, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

func DetailedWithApp() string {
	return fmt.Sprintf("%s %s", AppName, Detailed())
}
