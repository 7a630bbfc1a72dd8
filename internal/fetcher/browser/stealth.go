package browserfetch

// stealthScript runs before any page script in every new document. The
// contract: the session must not expose automation markers to page-level
// JavaScript. It hides the webdriver flag and fills in the object shapes a
// real Chrome exposes.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});

const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications' ?
        Promise.resolve({ state: Notification.permission }) :
        originalQuery(parameters)
);

if (!window.chrome) {
    window.chrome = {
        runtime: {},
        loadTimes: function() {},
        csi: function() {},
        app: {}
    };
}

const originalToString = Function.prototype.toString;
Function.prototype.toString = function() {
    if (this === Function.prototype.toString) return originalToString.call(this);
    if (this === window.navigator.permissions.query) return 'function query() { [native code] }';
    return originalToString.call(this);
};
`
