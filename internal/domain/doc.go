// Package domain models the telemetry pushed by Ecowitt weather-station gateways.
//
// # Data Source
//
// Ecowitt gateways (GW1000, GW1100, GW2000, HP2551 consoles) running the
// "customized" upload protocol POST an application/x-www-form-urlencoded body
// to a configurable path, by default /data/report, every 16-60 seconds. Each
// form field is one sensor channel:
//
//	PASSKEY=ABC123&stationtype=GW2000A_V2.2.4&dateutc=2024-04-26+15:10:00
//	&tempinf=71.6&humidityin=45&baromrelin=29.920&tempf=58.1&humidity=81
//	&windspeedmph=3.36&lightning=12&lightning_num=5&wh65batt=0&wh25batt=0
//
// # Metadata Fields
//
// PASSKEY (an MD5 of the gateway MAC), stationtype, model, freq and dateutc
// describe the gateway rather than a measurement. They are split off into
// [Payload] and never reach a calculator.
//
// # Unit Conventions
//
// The gateway reports in imperial units regardless of its display settings:
// temperatures in °F (suffix "f"), pressures in inHg (suffix "in"), speeds in
// mph, rainfall in inches. The one exception is the WH57 lightning detector,
// whose "lightning" distance is always kilometers. The input unit system is a
// property of the data source; the output unit system is a user preference.
//
// Battery channels ("wh65batt", "batt1", "pm25batt2", ...) are encoded per
// sensor model: some report 0/1 (ok/low), some a voltage, some a 0-5 bar level.
// Which interpretation applies is configured per key, see [BatteryStrategy].
//
// # Unparsable Values
//
// Gateways occasionally send "--" or an empty value for a sensor that dropped
// out. Such a value becomes a non-numeric [RawValue]; calculators turn it into
// a [CalculatedDataPoint] with a nil Value rather than an error.
package domain
