// Package knowledge holds the static operational knowledge for the facility:
// keyword sets mapping issue descriptions to categories, per-category contact
// assignments, and canned resolution steps. The data is built once at process
// start and never mutated.
package knowledge

import "fmt"

// Category identifies an issue routing bucket.
type Category string

const (
	CategoryEquipment  Category = "equipment"
	CategoryFacilities Category = "facilities"
	CategoryEmergency  Category = "emergency"
	CategoryAccess     Category = "access"
	CategoryBilling    Category = "billing"
	CategoryBooking    Category = "booking"
	CategoryGeneral    Category = "general"
)

// Contact is the person or desk assigned to a category.
type Contact struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
	Email string `yaml:"email"`
}

// Entry maps a keyword set to a category with canned resolution guidance.
// Declaration order matters: the classifier breaks overlap ties in favor of
// the earlier entry.
type Entry struct {
	Name         string
	Category     Category
	Keywords     []string
	Severity     int // default severity 1..5 for a match on this entry
	Resolution   []string
	TimeEstimate string
}

// Base is the immutable knowledge base handed to the classifier and the
// notification dispatcher. Construct via New or Default; never a package
// global.
type Base struct {
	entries  []Entry
	contacts map[Category]Contact
}

// New validates entries and contacts and builds a Base. A contact for
// CategoryGeneral is required because it is the fallback assignment.
func New(entries []Entry, contacts map[Category]Contact) (*Base, error) {
	if _, ok := contacts[CategoryGeneral]; !ok {
		return nil, fmt.Errorf("contacts must include the %q fallback", CategoryGeneral)
	}
	for i, e := range entries {
		if len(e.Keywords) == 0 {
			return nil, fmt.Errorf("entry %d (%s): empty keyword set", i, e.Name)
		}
		if e.Severity < 1 || e.Severity > 5 {
			return nil, fmt.Errorf("entry %d (%s): severity %d out of range 1..5", i, e.Name, e.Severity)
		}
	}
	return &Base{entries: entries, contacts: contacts}, nil
}

// Entries returns the entries in declaration order. Callers must not mutate
// the returned slice.
func (b *Base) Entries() []Entry { return b.entries }

// Contact returns the contact assigned to a category, falling back to the
// general contact for unknown categories.
func (b *Base) Contact(c Category) Contact {
	if contact, ok := b.contacts[c]; ok {
		return contact
	}
	return b.contacts[CategoryGeneral]
}

// KnownCategory reports whether c has an explicit contact assignment.
func (b *Base) KnownCategory(c Category) bool {
	_, ok := b.contacts[c]
	return ok
}

// Categories returns the categories with contact assignments.
func (b *Base) Categories() []Category {
	out := make([]Category, 0, len(b.contacts))
	for c := range b.contacts {
		out = append(out, c)
	}
	return out
}

// Default builds the stock facility knowledge base.
func Default() *Base {
	b, err := New(defaultEntries(), defaultContacts())
	if err != nil {
		// Stock data is validated by tests; this is unreachable.
		panic(err)
	}
	return b
}

func defaultContacts() map[Category]Contact {
	return map[Category]Contact{
		CategoryFacilities: {Name: "Nick Thompson", Phone: "281-555-0101", Email: "nick@clubhouse.com"},
		CategoryEquipment:  {Name: "Jason Miller", Phone: "281-555-0102", Email: "jason@clubhouse.com"},
		CategoryGeneral:    {Name: "Manager", Phone: "281-555-0103", Email: "manager@clubhouse.com"},
		CategoryEmergency:  {Name: "Mike Rodriguez", Phone: "281-555-0104", Email: "mike@clubhouse.com"},
		CategoryAccess:     {Name: "Manager", Phone: "281-555-0103", Email: "manager@clubhouse.com"},
		CategoryBilling:    {Name: "Manager", Phone: "281-555-0103", Email: "manager@clubhouse.com"},
		CategoryBooking:    {Name: "Manager", Phone: "281-555-0103", Email: "manager@clubhouse.com"},
	}
}

func defaultEntries() []Entry {
	return []Entry{
		{
			Name:     "emergency",
			Category: CategoryEmergency,
			Keywords: []string{"emergency", "urgent", "fire", "flood", "outage", "power outage", "safety"},
			Severity: 5,
			Resolution: []string{
				"Ensure immediate safety of staff and customers",
				"Contact emergency services if needed (911)",
				"Notify management immediately",
				"Document the incident",
				"Follow up with detailed report",
			},
			TimeEstimate: "Immediate",
		},
		{
			Name:     "trackman",
			Category: CategoryEquipment,
			Keywords: []string{"trackman", "not reading", "misread", "ball flight"},
			Severity: 4,
			Resolution: []string{
				"Check ball/club dots are clean and visible",
				"Hold power button 5 seconds to restart",
				"Verify green alignment box visible on screen",
				"Clean camera lens with microfiber cloth (in supply drawer)",
				"If not resolved, swap with unit from Bay 7",
			},
			TimeEstimate: "5-10 minutes",
		},
		{
			Name:     "projector",
			Category: CategoryEquipment,
			Keywords: []string{"projector", "no image", "black screen", "flickering"},
			Severity: 4,
			Resolution: []string{
				"Check projector power (green LED should be on)",
				"Press INPUT button - select HDMI 2",
				"Check PC in cabinet is powered on",
				"Restart both PC and projector",
				"Check HDMI cable at both ends",
			},
			TimeEstimate: "10 minutes",
		},
		{
			Name:     "equipment-generic",
			Category: CategoryEquipment,
			Keywords: []string{"simulator", "screen", "computer", "broken", "not working", "frozen", "freezing", "crashed"},
			Severity: 4,
			Resolution: []string{
				"Power cycle the equipment (hold power button 10 seconds)",
				"Check all cable connections",
				"Clean any sensors or lenses",
				"Restart associated computer/software",
				"Contact technical support if issue persists",
			},
			TimeEstimate: "10-15 minutes",
		},
		{
			Name:     "facilities",
			Category: CategoryFacilities,
			Keywords: []string{"hvac", "air", "temperature", "too hot", "too cold", "light", "lights", "electrical", "bathroom", "wifi", "parking"},
			Severity: 3,
			Resolution: []string{
				"Verify the scope of the issue (single bay or whole facility)",
				"Check relevant breaker or control panel",
				"Log the issue with a photo if visible damage",
				"Escalate to facilities contact if not resolved",
			},
			TimeEstimate: "1 hour",
		},
		{
			Name:     "access",
			Category: CategoryAccess,
			Keywords: []string{"door", "locked", "unlock", "key", "card", "code", "can't get in", "cannot enter", "access"},
			Severity: 3,
			Resolution: []string{
				"Verify booking and customer identity",
				"Trigger remote unlock from the dashboard",
				"Confirm customer is inside",
				"Reset the door code after the session",
			},
			TimeEstimate: "5 minutes",
		},
		{
			Name:     "billing",
			Category: CategoryBilling,
			Keywords: []string{"charged", "billed", "refund", "payment", "declined", "price"},
			Severity: 2,
			Resolution: []string{
				"Pull the transaction record",
				"Verify the booked duration against the charge",
				"Process correction or refund per policy",
				"Email confirmation to the customer",
			},
			TimeEstimate: "24 hours",
		},
		{
			Name:     "booking",
			Category: CategoryBooking,
			Keywords: []string{"reservation", "booked", "booking", "cancelled", "app"},
			Severity: 2,
			Resolution: []string{
				"Look up the reservation in the booking system",
				"Re-seat the customer in an open bay if double-booked",
				"Issue a time credit for the inconvenience",
			},
			TimeEstimate: "15 minutes",
		},
	}
}
