package detector

import (
	"cdrlens/internal/models"
)

func sharedIP() *Spec {
	return &Spec{
		Name:     "shared_ip",
		Label:    "Shared IP Multi-User Finder",
		Summary:  "Source IPs used by more than one subscriber.",
		Family:   models.FamilyIPDR,
		Required: []string{"msisdn", "source_ip"},
		Params: []Param{
			{Name: "max_users_per_ip", Description: "Distinct subscribers per source IP above which the IP is flagged", Default: 1, Min: 0},
		},
		Run: func(t *models.Table, in Input) ([]models.SuspectResult, error) {
			res := newResult("shared_ips", "Source IPs Shared by Multiple Subscribers",
				"source_ip", "user_count", "users")
			res.Rows = distinctPer(t, "source_ip", "msisdn", in.Thresholds.Get("max_users_per_ip"))

			return []models.SuspectResult{res}, nil
		},
	}
}

func imeiMultiMSISDN() *Spec {
	return &Spec{
		Name:     "imei_multi_msisdn",
		Label:    "IMEI–Multiple MSISDNs Analyzer",
		Summary:  "Devices that carried more than one subscriber number.",
		Family:   models.FamilyIPDR,
		Required: []string{"imei", "msisdn"},
		Params: []Param{
			{Name: "max_msisdn_per_imei", Description: "Distinct MSISDNs per IMEI above which the device is flagged", Default: 1, Min: 0},
		},
		Run: func(t *models.Table, in Input) ([]models.SuspectResult, error) {
			res := newResult("multi_msisdn_devices", "Devices Used by Multiple MSISDNs",
				"imei", "msisdn_count", "msisdns")
			res.Rows = distinctPer(t, "imei", "msisdn", in.Thresholds.Get("max_msisdn_per_imei"))

			return []models.SuspectResult{res}, nil
		},
	}
}
