// Package climate implements the MQTT climate controller entity and the
// climate_control integration that creates one controller per config
// entry.
//
// A Controller mirrors an HVAC device:
//   - mode, target temperature and current temperature come only from the
//     device's state topics (subscribed with QoS 1)
//   - SetMode and SetTemperature publish to the command topics (QoS 0, not
//     retained) and leave local state untouched until the device reports
//   - malformed payloads are logged at warn and dropped
//
// The entity id is climate.<slug(name)>; the unique id is the config
// entry ID. Entry options override entry data for the numeric settings.
package climate
