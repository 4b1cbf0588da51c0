package schema

// Vendor is a company tracked through the tender milestones.
type Vendor struct {
	ID   string
	Name string
}

// Vendors is the initial vendor list seeded into an empty timelines table.
// IDs are not contiguous; 16 is unused.
var Vendors = []Vendor{
	{"1", "Accenture"},
	{"2", "Atos"},
	{"3", "BCG"},
	{"4", "Cognizant"},
	{"5", "Dell"},
	{"6", "Delloitte"},
	{"7", "Digitas"},
	{"8", "Diversified"},
	{"9", "EY"},
	{"10", "GlobalLogic"},
	{"11", "GlobeCast"},
	{"12", "IBM"},
	{"13", "InfoSys"},
	{"14", "KPMG"},
	{"15", "Mckinsey"},
	{"17", "NEP"},
	{"18", "PWC"},
	{"19", "Qvest"},
	{"20", "SoftServe"},
	{"21", "SouthWorks"},
	{"22", "TenX"},
	{"23", "Valtech"},
	{"24", "Whyfive"},
}
