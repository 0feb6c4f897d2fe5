package raah

// Schema-tolerant extraction of display fields from a POI detail. The
// upstream fields array is scanned by type/icon tag with an explicit
// ordered fallback chain, so shape drift in one source degrades to the
// next instead of breaking the record.

// Placeholder strings mirror the upstream's Persian UI language.
const (
	AddressUnavailable = "آدرس در دسترس نیست"
	PhoneUnavailable   = "تلفن در دسترس نیست"
	PlaceNotFound      = "مکان یافت نشد"
	FetchFailed        = "خطا در دریافت اطلاعات"
	CategoryUnknown    = "نامشخص"
)

func (d *POIDetail) findField(fieldType, icon string) *Field {
	for i := range d.Fields {
		if d.Fields[i].Type == fieldType && d.Fields[i].Icon == icon {
			return &d.Fields[i]
		}
	}
	return nil
}

// Address extracts the street address: the text/gps field, then the SEO
// schema locality, then a placeholder.
func (d *POIDetail) Address() string {
	if f := d.findField("text", "gps"); f != nil && f.Value != "" {
		return f.Value
	}
	if len(d.SEODetails.Schemas) > 0 {
		if loc := d.SEODetails.Schemas[0].Address.AddressLocality; loc != "" {
			return loc
		}
	}
	return AddressUnavailable
}

// Phone extracts the phone number: the link/phone field, then the SEO
// schema telephone, then a placeholder.
func (d *POIDetail) Phone() string {
	if f := d.findField("link", "phone"); f != nil && f.Text != "" {
		return f.Text
	}
	if len(d.SEODetails.Schemas) > 0 {
		if tel := d.SEODetails.Schemas[0].Telephone; tel != "" {
			return tel
		}
	}
	return PhoneUnavailable
}

// WorkingHours extracts the first day/hours pair of the dropdown/clock
// field, or "" when absent.
func (d *POIDetail) WorkingHours() string {
	f := d.findField("dropdown", "clock")
	if f == nil || len(f.Fields) == 0 {
		return ""
	}
	block := f.Fields[0]
	if len(block.Items) == 0 || block.Items[0] == "" {
		return ""
	}
	if len(block.Titles) > 0 {
		return block.Titles[0] + " " + block.Items[0]
	}
	return block.Items[0]
}

// Score returns the rating score and count, zero-valued when absent.
func (d *POIDetail) Score() (score *float64, count int) {
	if d.Rating == nil {
		return nil, 0
	}
	return d.Rating.Score, d.Rating.Count
}

// CategoryName returns the category or the unknown placeholder.
func (d *POIDetail) CategoryName() string {
	if d.Category == "" {
		return CategoryUnknown
	}
	return d.Category
}
