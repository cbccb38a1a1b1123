package redis

// Key prefix for resume-token checkpoints.
const prefixCheckpoint = "warden:ckpt:"

// checkpointKey returns the key holding stream's resume token.
func checkpointKey(stream string) string {
	return prefixCheckpoint + stream
}
