// Package sink adapts medminder's outbound infrastructure to the
// medication.Notifier and medication.Publisher interfaces.
//
// Every adapter is optional. cmd/medminder builds the ones whose
// backends are enabled and combines them with Fanout:
//
//	pub := sink.Fanout{
//	    sink.NewMQTTPublisher(mqttClient),
//	    sink.NewRedisMirror(redisClient),
//	    hub,
//	}
//
// Failures in one sink never stop the others; Fanout joins their errors
// and the Manager logs them.
package sink
