package bridge

import "fmt"

// Status line formatters matching spec §6's exact wire text. Kept as free
// functions (not methods) so internal/core can build status strings without
// importing a connection-state-aware type from this package.

func StatusConnected(myCall, peerCall string) string {
	return fmt.Sprintf("CONNECTED %s %s 2300", myCall, peerCall)
}

const StatusDisconnected = "DISCONNECTED"
const StatusIAmAlive = "IAMALIVE"
const StatusPTTOn = "PTT ON"
const StatusPTTOff = "PTT OFF"

func StatusBuffer(n int) string {
	return fmt.Sprintf("BUFFER %d", n)
}

func StatusSN(snrDB float64) string {
	return fmt.Sprintf("SN %.1f", snrDB)
}

func StatusBitrate(level int, bps int) string {
	return fmt.Sprintf("BITRATE (%d) %d BPS", level, bps)
}
