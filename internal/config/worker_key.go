package config

type WorkerKeyStruct struct {
	// ExpirySweepLock serializes the expiry sweep across server replicas.
	ExpirySweepLock string
}

var WorkerKey = &WorkerKeyStruct{
	ExpirySweepLock: "lock:expiry_sweep",
}
