package models

// AddressRecord is one parsed Japanese address. FullAddress is the untouched
// input line; every other field is nil when the pipeline found nothing for it.
type AddressRecord struct {
	FullAddress  string  `json:"full_address" bson:"full_address"`
	Country      *string `json:"country" bson:"country,omitempty"`
	PostalCode   *string `json:"postal_code" bson:"postal_code,omitempty"`
	Prefecture   *string `json:"prefecture" bson:"prefecture,omitempty"`
	County       *string `json:"county" bson:"county,omitempty"`
	City         *string `json:"city" bson:"city,omitempty"`
	Ward         *string `json:"ward" bson:"ward,omitempty"`
	Neighborhood *string `json:"neighborhood" bson:"neighborhood,omitempty"`
	Banch        *string `json:"banch" bson:"banch,omitempty"`
	Go           *string `json:"go" bson:"go,omitempty"`
	BuildingName *string `json:"building_name" bson:"building_name,omitempty"`
	FloorNumber  *string `json:"floor_number" bson:"floor_number,omitempty"`
	RoomNumber   *string `json:"room_number" bson:"room_number,omitempty"`
}

// NewAddressRecord starts a record for one raw line.
func NewAddressRecord(fullAddress string) *AddressRecord {
	return &AddressRecord{FullAddress: fullAddress}
}

// Optional returns nil for "" so present fields are never empty.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences an optional field, "" when absent.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Fields lists the optional columns in output order. The CSV writer and the
// NDJSON stream both rely on this order.
func (r *AddressRecord) Fields() []*string {
	return []*string{
		r.Country,
		r.PostalCode,
		r.Prefecture,
		r.County,
		r.City,
		r.Ward,
		r.Neighborhood,
		r.Banch,
		r.Go,
		r.BuildingName,
		r.FloorNumber,
		r.RoomNumber,
	}
}

// FieldNames matches Fields.
var FieldNames = []string{
	"country",
	"postal_code",
	"prefecture",
	"county",
	"city",
	"ward",
	"neighborhood",
	"banch",
	"go",
	"building_name",
	"floor_number",
	"room_number",
}
