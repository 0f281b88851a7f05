package tools

import "ag-cli/internal/logger"

var toolsLog = logger.Named("tools")
