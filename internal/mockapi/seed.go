package mockapi

type shopRecord struct {
	ID        int
	Name      string
	Slug      string
	LogoURL   string
	Primary   string
	Phone     string
	Address   string
	Instagram string
	Barbers   []barberRecord
	Services  []serviceRecord
	Plans     []planRecord
}

type barberRecord struct {
	ID     int
	Name   string
	Avatar string
	Rating float64
}

type serviceRecord struct {
	ID          int
	Name        string
	Price       float64
	Duration    int
	Description string
}

type planRecord struct {
	ID          string
	Name        string
	Price       float64
	Description string
	Benefits    []string
	Featured    bool
	// MonthlyLimit caps bookings per calendar month; 0 means unlimited.
	MonthlyLimit int
}

type seedUser struct {
	Name     string
	Email    string
	Phone    string
	Password string
}

// dailySlots is the opening schedule of every barber; lunch at 12:00.
var dailySlots = []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00", "16:00", "17:00", "18:00"}

func seedShops() []shopRecord {
	return []shopRecord{
		{
			ID:        1,
			Name:      "Victor Azambuja Barbearia",
			Slug:      "victor-azambuja",
			LogoURL:   "https://github.com/shadcn.png",
			Primary:   "#2563eb",
			Phone:     "+55 11 99999-0000",
			Address:   "Rua Augusta, 1500 - São Paulo",
			Instagram: "@victorazambuja",
			Barbers: []barberRecord{
				{ID: 1, Name: "João Navalha", Avatar: "https://i.pravatar.cc/150?u=1", Rating: 4.8},
				{ID: 2, Name: "Mestre Bigode", Avatar: "https://i.pravatar.cc/150?u=2", Rating: 5.0},
				{ID: 3, Name: "Ana Cortes", Avatar: "https://i.pravatar.cc/150?u=3", Rating: 4.7},
			},
			Services: []serviceRecord{
				{ID: 1, Name: "Corte de Cabelo", Price: 35, Duration: 30, Description: "Corte social ou degradê."},
				{ID: 2, Name: "Barba Completa", Price: 25, Duration: 20, Description: "Barba modelada com toalha quente."},
				{ID: 3, Name: "Combo (Cabelo + Barba)", Price: 50, Duration: 50, Description: "O pacote completo."},
			},
			Plans: []planRecord{
				{
					ID: "basic", Name: "Homem Moderno", Price: 59.90,
					Description:  "Para quem mantém o corte em dia.",
					Benefits:     []string{"2 Cortes por mês", "Agenda prioritária", "5% off em produtos"},
					MonthlyLimit: 2,
				},
				{
					ID: "vip", Name: "Estilo VIP", Price: 99.90,
					Description: "Cabelo e barba sempre alinhados.",
					Benefits:    []string{"Cortes ilimitados", "Barba ilimitada", "Bebida grátis", "Toalha quente"},
					Featured:    true,
				},
			},
		},
		{
			ID:      2,
			Name:    "Barber King",
			Slug:    "barber-king",
			Primary: "#7c3aed",
			Phone:   "+55 21 98888-0000",
			Barbers: []barberRecord{
				{ID: 4, Name: "Rei do Degradê", Rating: 4.9},
			},
			Services: []serviceRecord{
				{ID: 4, Name: "Corte Real", Price: 45, Duration: 40},
			},
		},
	}
}

func seedUsers() []seedUser {
	return []seedUser{
		{Name: "Cliente Demo", Email: "a@b.com", Phone: "+55 11 90000-0000", Password: "secret123"},
	}
}
