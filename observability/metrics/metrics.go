package metrics

import "time"

const schemaName = "uidlist_errors_total"
const schemaVersion = 1

func generateFailureMetric(errorType string) map[string]interface{} {
	return map[string]interface{}{
		"Name":      schemaName,
		"Version":   schemaVersion,
		"Timestamp": time.Now().Unix(),
		"Data": map[string]interface{}{
			"Value": 1,
			"Labels": map[string]string{
				"errorType": errorType,
			},
		},
	}
}

func GenerateCorruptListMetric() map[string]interface{} {
	return generateFailureMetric("corruptList")
}

func GenerateInconsistentListMetric() map[string]interface{} {
	return generateFailureMetric("inconsistentList")
}

func GenerateFailedCommitMetric() map[string]interface{} {
	return generateFailureMetric("failedCommit")
}

func GenerateStaleLockReclaimedMetric() map[string]interface{} {
	return generateFailureMetric("staleLockReclaimed")
}

func GenerateAllMetrics() []map[string]interface{} {
	return []map[string]interface{}{
		GenerateCorruptListMetric(),
		GenerateInconsistentListMetric(),
		GenerateFailedCommitMetric(),
		GenerateStaleLockReclaimedMetric(),
	}
}
