package normalizer

import "cdrlens/internal/models"

// FieldAlias lists the accepted source spellings of one canonical field.
// Aliases are matched in order after folding.
type FieldAlias struct {
	Field   string
	Aliases []string
	Kind    models.ColumnKind
}

// AliasMap is the ordered set of canonical fields of one record family.
type AliasMap []FieldAlias

// Fields returns the canonical field names in declared order.
func (m AliasMap) Fields() []string {
	out := make([]string, len(m))
	for i, f := range m {
		out[i] = f.Field
	}

	return out
}

// Kind returns the kind of a canonical field; unknown fields are text.
func (m AliasMap) Kind(field string) models.ColumnKind {
	for _, f := range m {
		if f.Field == field {
			return f.Kind
		}
	}

	return models.KindText
}

// CDRAliases are the call detail record fields.
var CDRAliases = AliasMap{
	{Field: "calling_number", Aliases: []string{"calling_number", "caller", "source_number", "a_party", "a_number", "calling_party", "originating_number", "msisdn", "from"}},
	{Field: "called_number", Aliases: []string{"called_number", "callee", "destination_number", "b_party", "b_number", "called_party", "dialed_number", "to"}},
	{Field: "start_time", Aliases: []string{"start_time", "timestamp", "call_start", "start_date_time", "call_time", "date_time", "datetime", "call_date"}, Kind: models.KindTimestamp},
	{Field: "end_time", Aliases: []string{"end_time", "call_end", "end_date_time"}, Kind: models.KindTimestamp},
	{Field: "duration", Aliases: []string{"duration", "call_duration", "duration_seconds", "duration_sec", "dur"}},
	{Field: "call_direction", Aliases: []string{"call_direction", "direction", "call_type", "type"}},
	{Field: "call_status", Aliases: []string{"call_status", "status", "result", "disposition"}},
	{Field: "imei", Aliases: []string{"imei", "device_id", "handset_id"}},
	{Field: "imsi", Aliases: []string{"imsi", "sim_id", "subscriber_id"}},
	{Field: "cell_id", Aliases: []string{"cell_id", "cell", "tower_id", "tower", "cgi", "first_cell_id", "bts_id"}},
	{Field: "latitude", Aliases: []string{"latitude", "lat", "tower_lat", "cell_lat"}},
	{Field: "longitude", Aliases: []string{"longitude", "lon", "lng", "long", "tower_lon", "cell_lon"}},
	{Field: "location", Aliases: []string{"location", "network_location", "serving_network", "country", "circle", "area"}},
	{Field: "roaming", Aliases: []string{"roaming", "roaming_status", "is_roaming", "roaming_flag"}},
}

// IPDRAliases are the IP detail record fields.
var IPDRAliases = AliasMap{
	{Field: "msisdn", Aliases: []string{"msisdn", "subscriber", "phone_number", "mobile_number", "user", "user_id"}},
	{Field: "imei", Aliases: []string{"imei", "device_id", "handset_id"}},
	{Field: "imsi", Aliases: []string{"imsi", "sim_id", "subscriber_id"}},
	{Field: "source_ip", Aliases: []string{"source_ip", "src_ip", "private_ip", "client_ip", "ip_address", "ip"}},
	{Field: "source_port", Aliases: []string{"source_port", "src_port", "client_port"}},
	{Field: "destination_ip", Aliases: []string{"destination_ip", "dest_ip", "dst_ip", "public_ip", "server_ip", "remote_ip"}},
	{Field: "destination_port", Aliases: []string{"destination_port", "dest_port", "dst_port", "server_port", "port"}},
	{Field: "protocol", Aliases: []string{"protocol", "proto", "transport", "ip_protocol"}},
	{Field: "domain", Aliases: []string{"domain", "domain_name", "host", "hostname", "url", "dns_query", "query"}},
	{Field: "start_time", Aliases: []string{"start_time", "timestamp", "session_start", "start_date_time", "date_time", "datetime", "access_time"}, Kind: models.KindTimestamp},
	{Field: "end_time", Aliases: []string{"end_time", "session_end", "end_date_time"}, Kind: models.KindTimestamp},
	{Field: "bytes_up", Aliases: []string{"bytes_up", "uplink_bytes", "upload_bytes", "bytes_sent", "uplink_volume"}},
	{Field: "bytes_down", Aliases: []string{"bytes_down", "downlink_bytes", "download_bytes", "bytes_received", "downlink_volume"}},
	{Field: "http_status", Aliases: []string{"http_status", "status_code", "http_status_code", "response_code"}},
	{Field: "dns_response_code", Aliases: []string{"dns_response_code", "rcode", "dns_rcode", "dns_status"}},
	{Field: "geo_country", Aliases: []string{"geo_country", "geoip_country", "ip_country", "country_geo"}},
	{Field: "whois_country", Aliases: []string{"whois_country", "registration_country", "registered_country", "country_whois"}},
}

// AliasesFor returns the alias map of a record family.
func AliasesFor(family models.Family) AliasMap {
	if family == models.FamilyIPDR {
		return IPDRAliases
	}

	return CDRAliases
}
