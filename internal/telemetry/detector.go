// Parksense - Parking and Traffic Telemetry Integration
// Copyright 2026 Ming Hsu (minghsu)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/minghsu/parksense

package telemetry

import "strings"

// detectRules maps URL markers to parking system variants. Order matters:
// the first matching rule wins.
var detectRules = []struct {
	marker string
	system ParkingSystemType
}{
	{"youparking.com.tw", SystemYP},
	{"nobel168.com.tw", SystemNB},
	{"parking/altobParking", SystemAP},
	{"stables.com.tw", SystemMP},
	{"/nhr/", SystemNHR},
}

// DetectParkingSystem maps a device's configured API URL to its vendor
// protocol by ordered substring match. An empty or unrecognized URL defaults
// to MP. Pure function, no I/O.
func DetectParkingSystem(apiURL string) ParkingSystemType {
	for _, rule := range detectRules {
		if strings.Contains(apiURL, rule.marker) {
			return rule.system
		}
	}
	return SystemMP
}
