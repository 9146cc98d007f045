package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/wolfman30/barbershop-client/internal/agenda"
	"github.com/wolfman30/barbershop-client/internal/barberapi"
	"github.com/wolfman30/barbershop-client/internal/navigation"
	"github.com/wolfman30/barbershop-client/internal/plans"
	"github.com/wolfman30/barbershop-client/internal/session"
	"github.com/wolfman30/barbershop-client/internal/wizard"
)

type command struct {
	name  string
	usage string
	// screen is routed through the guard first; empty skips it.
	screen navigation.Screen
	run    func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"shop", "shop [slug]            select a barbershop, or show the current one", "", runShop},
	{"forget-shop", "forget-shop            clear the selected barbershop", "", runForgetShop},
	{"login", "login -email E -password P", navigation.ScreenLogin, runLogin},
	{"register", "register -name N -email E -password P [-confirm P]", navigation.ScreenRegister, runRegister},
	{"logout", "logout                 sign out, keeping the shop", "", runLogout},
	{"whoami", "whoami                 show shop and account", "", runWhoami},
	{"profile", "profile [-name N] [-email E] [-phone P]", navigation.ScreenProfile, runProfile},
	{"services", "services               list the shop's services", navigation.ScreenBooking, runServices},
	{"barbers", "barbers                list the shop's professionals", navigation.ScreenBooking, runBarbers},
	{"slots", "slots -barber ID -date YYYY-MM-DD [-service ID]", navigation.ScreenBooking, runSlots},
	{"book", "book -service ID -barber ID -date YYYY-MM-DD [-time HH:MM]", navigation.ScreenBooking, runBook},
	{"agenda", "agenda                 upcoming and past appointments", navigation.ScreenAgenda, runAgenda},
	{"cancel", "cancel ID              cancel an upcoming appointment", navigation.ScreenAgenda, runCancel},
	{"plans", "plans                  list club plans", navigation.ScreenPlans, runPlans},
	{"subscribe", "subscribe -plan ID [-payment store|credit_card]", navigation.ScreenPlanDetails, runSubscribe},
	{"subscription", "subscription           show the current plan", navigation.ScreenPlans, runSubscription},
	{"unsubscribe", "unsubscribe            cancel the current plan", navigation.ScreenPlans, runUnsubscribe},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: barber <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", c.usage)
	}
}

func newFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func runShop(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 {
		state := a.store.Snapshot()
		if !state.HasShop() {
			return errNoShop
		}
		printShop(a.out, state.Shop)
		return nil
	}
	shop, err := a.store.FindShop(ctx, args[0])
	if err != nil {
		if errors.Is(err, barberapi.ErrNotFound) {
			return fmt.Errorf("barbershop %q not found", args[0])
		}
		return err
	}
	if err := a.store.SelectShop(ctx, *shop); err != nil {
		return err
	}
	printShop(a.out, shop)
	return nil
}

func printShop(out io.Writer, shop *barberapi.Shop) {
	fmt.Fprintf(out, "%s (%s)\n", shop.Name, shop.Slug)
	fmt.Fprintf(out, "  theme: %s\n", shop.PrimaryColor())
	if shop.Contact.Address != "" {
		fmt.Fprintf(out, "  %s\n", shop.Contact.Address)
	}
	if shop.Contact.Phone != "" {
		fmt.Fprintf(out, "  %s\n", shop.Contact.Phone)
	}
}

func runForgetShop(ctx context.Context, a *app, _ []string) error {
	if err := a.store.ForgetShop(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "barbershop cleared")
	return nil
}

func runLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlags("login", a.out)
	email := fs.String("email", "", "account e-mail")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("-email and -password are required")
	}
	if err := a.store.SignIn(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", a.store.Snapshot().User.Name)
	return nil
}

func runRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlags("register", a.out)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "e-mail")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password confirmation (defaults to -password)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *password
	}
	err := a.store.SignUp(ctx, session.SignUpRequest{
		Name:                 *name,
		Email:                *email,
		Password:             *password,
		PasswordConfirmation: *confirm,
	})
	if err != nil {
		printFieldErrors(a.out, err)
		return err
	}
	fmt.Fprintf(a.out, "welcome, %s\n", a.store.Snapshot().User.Name)
	return nil
}

func printFieldErrors(out io.Writer, err error) {
	var apiErr *barberapi.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Fields) == 0 {
		return
	}
	for field, msgs := range apiErr.Fields {
		for _, m := range msgs {
			fmt.Fprintf(out, "  %s: %s\n", field, m)
		}
	}
}

func runLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.store.SignOut(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func runWhoami(_ context.Context, a *app, _ []string) error {
	state := a.store.Snapshot()
	if state.HasShop() {
		fmt.Fprintf(a.out, "shop: %s (%s)\n", state.Shop.Name, state.Shop.Slug)
	} else {
		fmt.Fprintln(a.out, "shop: none")
	}
	if state.Authenticated() {
		fmt.Fprintf(a.out, "user: %s <%s>\n", state.User.Name, state.User.Email)
	} else {
		fmt.Fprintln(a.out, "user: signed out")
	}
	return nil
}

func runProfile(ctx context.Context, a *app, args []string) error {
	fs := newFlags("profile", a.out)
	name := fs.String("name", "", "new name")
	email := fs.String("email", "", "new e-mail")
	phone := fs.String("phone", "", "new phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user := a.store.Snapshot().User
	if *name != "" || *email != "" || *phone != "" {
		updated, err := a.store.UpdateUser(ctx, barberapi.UpdateProfileRequest{Name: *name, Email: *email, Phone: *phone})
		if err != nil {
			printFieldErrors(a.out, err)
			return err
		}
		user = updated
	}
	fmt.Fprintf(a.out, "%s <%s>\n", user.Name, user.Email)
	if user.Phone != "" {
		fmt.Fprintf(a.out, "  %s\n", user.Phone)
	}
	return nil
}

func runServices(ctx context.Context, a *app, _ []string) error {
	list, err := a.client.ListServices(ctx, a.shopSlug())
	if err != nil {
		return err
	}
	tw := table(a.out)
	fmt.Fprintln(tw, "ID\tSERVICE\tDURATION\tPRICE")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d min\t%s\n", s.ID, s.Name, s.DurationMinutes, brl(s.Price))
	}
	return tw.Flush()
}

func runBarbers(ctx context.Context, a *app, _ []string) error {
	list, err := a.client.ListBarbers(ctx, a.shopSlug())
	if err != nil {
		return err
	}
	tw := table(a.out)
	fmt.Fprintln(tw, "ID\tPROFESSIONAL\tRATING")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\n", b.ID, b.Name, b.Rating)
	}
	return tw.Flush()
}

func runSlots(ctx context.Context, a *app, args []string) error {
	fs := newFlags("slots", a.out)
	barber := fs.String("barber", "", "professional id")
	date := fs.String("date", "", "YYYY-MM-DD")
	service := fs.String("service", "", "service id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *barber == "" || *date == "" {
		return errors.New("-barber and -date are required")
	}
	slots, err := a.client.AvailableSlots(ctx, a.shopSlug(), *date, *barber, *service)
	if err != nil {
		return err
	}
	printSlots(a.out, slots)
	return nil
}

func printSlots(out io.Writer, slots []string) {
	if len(slots) == 0 {
		fmt.Fprintln(out, wizard.NoSlotsMessage)
		return
	}
	fmt.Fprintln(out, strings.Join(slots, "  "))
}

// runBook walks the booking wizard with the given selections. Without -time
// it stops at step 3 and lists the free slots.
func runBook(ctx context.Context, a *app, args []string) error {
	fs := newFlags("book", a.out)
	service := fs.String("service", "", "service id")
	barber := fs.String("barber", "", "professional id")
	date := fs.String("date", "", "YYYY-MM-DD (defaults to today)")
	hhmm := fs.String("time", "", "HH:MM")
	if err := fs.Parse(args); err != nil {
		return err
	}

	state := a.store.Snapshot()
	w := wizard.New(a.client, wizard.Options{
		ShopSlug:    a.shopSlug(),
		ClientPhone: state.User.Phone,
		DaysAhead:   a.cfg.BookingDaysAhead,
		Logger:      a.logger,
		Metrics:     a.metrics,
	})
	defer w.Close()

	if err := w.Load(ctx); err != nil {
		return err
	}
	if err := w.SelectService(*service); err != nil {
		return fmt.Errorf("service %q: %w", *service, err)
	}
	w.Next()
	if err := w.SelectBarber(*barber); err != nil {
		return fmt.Errorf("professional %q: %w", *barber, err)
	}
	w.Next()
	if *date != "" {
		if err := w.SelectDate(*date); err != nil {
			return err
		}
	}
	w.WaitSlots()

	ws := w.State()
	if ws.SlotsError != "" {
		return errors.New(ws.SlotsError)
	}
	if *hhmm == "" {
		fmt.Fprintf(a.out, "%s with %s on %s:\n", ws.Draft.Service.Name, ws.Draft.Barber.Name, ws.Draft.Date)
		printSlots(a.out, ws.Draft.Slots)
		return nil
	}
	if err := w.SelectTime(*hhmm); err != nil {
		return fmt.Errorf("%s on %s: %w", *hhmm, ws.Draft.Date, err)
	}
	w.Next()

	conf, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	a.guard.Navigate(navigation.ScreenAppointmentSuccess)
	fmt.Fprintln(a.out, "Agendamento confirmado!")
	fmt.Fprintf(a.out, "  %s com %s\n", conf.ServiceName, conf.BarberName)
	fmt.Fprintf(a.out, "  %s às %s\n", conf.Date, conf.Time)
	fmt.Fprintf(a.out, "  total: %s\n", brl(conf.TotalPrice))
	return nil
}

func runAgenda(ctx context.Context, a *app, _ []string) error {
	ag := agenda.New(a.client, agenda.Options{Logger: a.logger})
	view, err := ag.Refresh(ctx)
	if err != nil {
		return err
	}
	printAppointments(a.out, "Próximos", view.Upcoming)
	printAppointments(a.out, "Histórico", view.History)
	return nil
}

func printAppointments(out io.Writer, title string, list []barberapi.Appointment) {
	fmt.Fprintf(out, "%s (%d)\n", title, len(list))
	tw := table(out)
	for _, appt := range list {
		barber, service := "-", "-"
		if appt.Barber != nil {
			barber = appt.Barber.Name
		}
		if appt.Service != nil {
			service = appt.Service.Name
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n", appt.ID, appt.ScheduledAt, service, barber, brl(appt.TotalPrice), agenda.StatusLabel(appt.Status))
	}
	_ = tw.Flush()
}

func runCancel(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: barber cancel ID")
	}
	ag := agenda.New(a.client, agenda.Options{Logger: a.logger})
	if _, err := ag.Refresh(ctx); err != nil {
		return err
	}
	if _, err := ag.Cancel(ctx, args[0]); err != nil {
		if errors.Is(err, agenda.ErrNotCancellable) {
			return fmt.Errorf("appointment %s is not upcoming", args[0])
		}
		return errors.New(barberapi.UserMessage(err, agenda.GenericCancelError))
	}
	fmt.Fprintf(a.out, "appointment %s cancelled\n", args[0])
	return nil
}

func runPlans(ctx context.Context, a *app, _ []string) error {
	svc := plans.New(a.client, a.shopSlug(), a.logger)
	list := svc.Catalog(ctx)
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no plans available")
		return nil
	}
	for _, p := range list {
		marker := ""
		if p.Recommended {
			marker = " *"
		}
		fmt.Fprintf(a.out, "%s  %s%s  %s/mês\n", p.ID, p.Name, marker, brl(p.Price))
		for _, f := range p.Features {
			fmt.Fprintf(a.out, "    - %s\n", f)
		}
	}
	return nil
}

func runSubscribe(ctx context.Context, a *app, args []string) error {
	fs := newFlags("subscribe", a.out)
	planID := fs.String("plan", "", "plan id")
	payment := fs.String("payment", "store", "store or credit_card")
	if err := fs.Parse(args); err != nil {
		return err
	}
	method, err := plans.ParsePaymentMethod(*payment)
	if err != nil {
		return err
	}
	svc := plans.New(a.client, a.shopSlug(), a.logger)
	sub, err := svc.Checkout(ctx, *planID, method)
	if errors.Is(err, plans.ErrPlanNotFound) {
		return fmt.Errorf("plan %q not found", *planID)
	}
	if err != nil {
		return errors.New(barberapi.UserMessage(err, plans.GenericSubscribeError))
	}
	fmt.Fprintf(a.out, "subscribed to %s\n", sub.PlanID)
	return nil
}

func runSubscription(ctx context.Context, a *app, _ []string) error {
	sub := plans.New(a.client, a.shopSlug(), a.logger).Current(ctx)
	if sub == nil {
		fmt.Fprintln(a.out, "no active plan")
		return nil
	}
	name := sub.PlanID
	if sub.Plan != nil {
		name = sub.Plan.Name
	}
	fmt.Fprintf(a.out, "%s (%s)\n", name, sub.Status)
	if sub.NextBillingDate != "" {
		fmt.Fprintf(a.out, "  next billing: %s\n", sub.NextBillingDate)
	}
	return nil
}

func runUnsubscribe(ctx context.Context, a *app, _ []string) error {
	if err := plans.New(a.client, a.shopSlug(), a.logger).Cancel(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "plan cancelled")
	return nil
}

func brl(v float64) string {
	s := fmt.Sprintf("R$ %.2f", v)
	return strings.Replace(s, ".", ",", 1)
}
