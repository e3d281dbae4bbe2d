package cmd

// Version is stamped at build time:
//
//	go build -ldflags "-X github.com/strixweb/strix/cmd.Version=v0.2.0"
var Version = "0.1.0-dev"
